package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps assets on disk under root.  BaseURL is where the HTTP
// server mounts root, e.g. "/uploads".
type LocalStore struct {
	root    string
	baseURL string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore.
func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Root returns the directory backing the store.
func (l *LocalStore) Root() string { return l.root }

// Put implements Store.
func (l *LocalStore) Put(_ context.Context, key string, body io.ReadSeeker, _ int64, _ string) error {
	name, err := l.fixPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("failed to copy data to file %s: %w", name, err)
	}
	return nil
}

// Remove implements Store.  Missing files are not an error.
func (l *LocalStore) Remove(_ context.Context, keys ...string) error {
	var errs []error
	for _, k := range keys {
		name, err := l.fixPath(k)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove file %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// URL implements Store.
func (l *LocalStore) URL(key string) string { return l.baseURL + "/" + key }

// fixPath maps key under root and refuses anything that would escape it.
func (l *LocalStore) fixPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + key))
	name := filepath.Join(l.root, clean)
	rel, err := filepath.Rel(l.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}
