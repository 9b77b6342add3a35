// Package artifact holds the file plumbing shared by the generators and renderers.
// Output directories are never created implicitly; a missing directory is reported as
// ErrOutputDirMissing so callers can fail with a precise message.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrOutputDirMissing is returned when the parent directory of an output path does not exist.
var ErrOutputDirMissing = errors.New("output directory missing")

// ErrInputMissing is returned when an input artifact does not exist.
var ErrInputMissing = errors.New("input file missing")

// Create opens path for writing, truncating any previous content.
func Create(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrOutputDirMissing, dir)
		}
		return nil, fmt.Errorf("stat output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOutputDirMissing, dir)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

// Open opens an input artifact for reading.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// WriteFile creates path and streams write into it. It returns the number of bytes written.
// A failed write leaves whatever was flushed so far on disk.
func WriteFile(path string, write func(w io.Writer) error) (int64, error) {
	f, err := Create(path)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: f}
	if err := write(cw); err != nil {
		_ = f.Close()
		return cw.n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return cw.n, fmt.Errorf("close %s: %w", path, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
