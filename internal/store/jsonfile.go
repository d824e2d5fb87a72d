// Package store keeps wabot's small persistent state as flat JSON files
// under the data directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is one JSON document on disk. Every read-modify-write holds the
// file's mutex, so two handlers in this process cannot interleave updates.
// Writes go through temp file + rename.
type File[T any] struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File for path. Nothing is read until first use.
func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// Path returns the file location.
func (f *File[T]) Path() string {
	return f.path
}

// Load returns the current document. A missing file reads as the zero value;
// a corrupt one is an error.
func (f *File[T]) Load() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Save replaces the document.
func (f *File[T]) Save(v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(v)
}

// Update applies fn to the current document and writes the result.
// If fn returns an error nothing is written.
func (f *File[T]) Update(fn func(*T) error) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.read()
	if err != nil {
		return v, err
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	if err := f.write(v); err != nil {
		return v, err
	}
	return v, nil
}

func (f *File[T]) read() (T, error) {
	var v T
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("store: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("store: %s is corrupt: %w", f.path, err)
	}
	return v, nil
}

func (f *File[T]) write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", f.path, err)
	}
	if err := replaceFile(f.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("store: write %s: %w", f.path, err)
	}
	return nil
}

// replaceFile writes data next to path and renames it into place, so a
// crash leaves either the previous document or the new one.
func replaceFile(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
