package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// File keeps the credential in a JSON document under a config directory,
// the CLI's equivalent of origin-scoped browser storage.
type File struct {
	dir   string
	scope string
}

// NewFile returns a store rooted at dir. An empty dir disables persistence.
func NewFile(dir, scope string) *File {
	return &File{dir: dir, scope: scope}
}

// Path returns the credential file location.
func (f *File) Path() string {
	if f == nil || f.dir == "" {
		return ""
	}
	name := "credential.json"
	if f.scope != "" {
		name = "credential-" + filepath.Base(f.scope) + ".json"
	}
	return filepath.Join(f.dir, name)
}

func (f *File) Get(context.Context) (string, error) {
	path := f.Path()
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var doc map[string]string
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", err
	}
	return doc[StorageKey], nil
}

func (f *File) Set(_ context.Context, credential string) error {
	path := f.Path()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(map[string]string{StorageKey: credential}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *File) Clear(context.Context) error {
	path := f.Path()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
