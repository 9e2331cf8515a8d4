// Package storage keeps uploaded resource files.
//
// Only local disk is implemented. Files are written under one directory with
// a generated key, so user-supplied names never become paths:
//
//	<dir>/<xid><ext>   served as   /uploads/<xid><ext>
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// URLPrefix is where the server mounts the upload directory.
const URLPrefix = "/uploads/"

var ErrInvalidKey = errors.New("storage: invalid key")

// StoredFile describes a saved upload.
type StoredFile struct {
	Key  string
	URL  string
	Size int64
}

// Store is implemented by LocalStore. Services depend on this interface.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (StoredFile, error)
	Remove(ctx context.Context, key string) error
}

// LocalStore writes files to a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("storage: upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory, for mounting a file server.
func (s *LocalStore) Dir() string { return s.dir }

// Save copies r into a new file. name only contributes its extension.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	key := xid.New().String() + cleanExt(name)

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return StoredFile{}, fmt.Errorf("storage: opening %s: %w", s.dir, err)
	}
	defer root.Close()

	f, err := root.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("storage: creating %s: %w", key, err)
	}
	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		root.Remove(key)
		return StoredFile{}, fmt.Errorf("storage: writing %s: %w", key, err)
	}

	return StoredFile{Key: key, URL: URLPrefix + key, Size: size}, nil
}

// Remove deletes the file for key. A missing file is not an error.
func (s *LocalStore) Remove(_ context.Context, key string) error {
	if key == "" || key != path.Base(key) || strings.HasPrefix(key, ".") {
		return ErrInvalidKey
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("storage: opening %s: %w", s.dir, err)
	}
	defer root.Close()

	if err := root.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", key, err)
	}
	return nil
}

// cleanExt keeps a short alphanumeric extension and drops anything else.
func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
