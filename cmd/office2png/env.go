package main

import (
	"context"
	"io"
	"os"
	"time"

	office2png "github.com/alnah/go-office2png"
)

// batchConverter is the part of *office2png.Converter the CLI drives.
type batchConverter interface {
	Convert(ctx context.Context, input, outputDir string, opts ...office2png.ConvertOption) (*office2png.FileResult, error)
	ConvertBatch(ctx context.Context, inputs []string, outputDir string, opts ...office2png.BatchOption) (*office2png.BatchResult, error)
	Health() office2png.PoolHealth
	PoolSize() int
	Close() error
}

// Compile-time interface implementation check.
var _ batchConverter = (*office2png.Converter)(nil)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now          func() time.Time
	Stdout       io.Writer
	Stderr       io.Writer
	NewConverter func(opts ...office2png.Option) (batchConverter, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:    time.Now,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		NewConverter: func(opts ...office2png.Option) (batchConverter, error) {
			conv, err := office2png.NewConverter(opts...)
			if err != nil {
				return nil, err
			}
			return conv, nil
		},
	}
}
