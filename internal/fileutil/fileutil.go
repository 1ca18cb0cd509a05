// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrNameEmpty         = errors.New("name cannot be empty")
	ErrNamePathTraversal = errors.New("name contains path separator or null byte")
)

// PartialSuffix marks a file that is still being written. A file carrying
// this suffix is never complete output.
const PartialSuffix = ".partial"

// defaultStem is used when a path has no usable base name.
const defaultStem = "output"

// ValidateName checks that name is safe to use as a file name component.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return ErrNamePathTraversal
	}
	if name == "." || name == ".." {
		return ErrNamePathTraversal
	}
	return nil
}

// NormalizeExtension lowercases ext and strips a leading dot.
//
// Examples:
//   - ".DOCX" -> "docx"
//   - "xlsx"  -> "xlsx"
//   - ""      -> ""
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Extension returns the normalized extension of path.
func Extension(path string) string {
	return NormalizeExtension(filepath.Ext(path))
}

// Stem returns the file name of path without its extension.
// Falls back to "output" when nothing is left.
func Stem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return defaultStem
	}
	return stem
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirWritable returns nil if dir exists and a file can be created in it.
func DirWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".office2png-writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// WriteFileAtomic writes data next to path under a PartialSuffix name and
// renames it into place, so readers never observe a truncated file at path.
// An existing file at path is replaced.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := writePartial(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", filepath.Base(tmp), err)
	}
	return nil
}

// WriteFileExclusive is WriteFileAtomic without replacement: when path
// already exists, whoever created it, the write fails with fs.ErrExist and
// the existing file is left untouched.
func WriteFileExclusive(path string, data []byte, perm os.FileMode) error {
	tmp, err := writePartial(path, data, perm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	err = os.Link(tmp, path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s: %w", filepath.Base(path), fs.ErrExist)
	}

	// Filesystems without hard links: exclusive create, not atomic.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) // #nosec G304 -- path built from the output dir
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), fs.ErrExist)
		}
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// writePartial writes data to a uniquely named PartialSuffix file in path's
// directory and returns its name. Concurrent writers of one path never
// share a partial file.
func writePartial(path string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+PartialSuffix)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if err == nil {
		err = f.Chmod(perm)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", filepath.Base(tmp), err)
	}
	return tmp, nil
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "production" -> false (name)
//   - "./office2png.yaml" -> true (relative path)
//   - "/etc/office2png.yaml" -> true (absolute)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
