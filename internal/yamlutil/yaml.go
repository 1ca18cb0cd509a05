// Package yamlutil decodes office2png YAML configuration documents.
package yamlutil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxConfigSize caps a configuration document. A complete office2png config
// is a few hundred bytes.
const MaxConfigSize = 64 << 10

var (
	ErrEmptyDocument  = errors.New("empty YAML document")
	ErrNilDestination = errors.New("nil decode destination")
	ErrTooLarge       = errors.New("YAML document too large")
	ErrDecode         = errors.New("invalid YAML")
)

// DecodeStrict decodes a configuration document into v. Unknown keys are
// errors so a misspelled setting is reported rather than ignored. Decode
// errors keep the parser's [line:column] position.
func DecodeStrict(data []byte, v any) error {
	switch {
	case v == nil:
		return ErrNilDestination
	case len(bytes.TrimSpace(data)) == 0:
		return ErrEmptyDocument
	case len(data) > MaxConfigSize:
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), MaxConfigSize)
	}

	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("%w: %s", ErrDecode, yaml.FormatError(err, false, false))
	}
	return nil
}
