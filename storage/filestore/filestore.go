// Package filestore is the durable storage.Store tier: one file per key under
// a data directory, written atomically so a crash never leaves a torn record.
package filestore

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/creatoros/go-auth-client/storage"
	"github.com/pkg/errors"
)

var _ storage.Store = (*Store)(nil)

// Store persists values as files under a single directory.
type Store struct {
	dir string
}

// New creates the data directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "[filestore.New] mkdir %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "[filestore.Get] read")
	}
	return data, nil
}

func (s *Store) Set(key string, value []byte) error {
	return atomicWriteFile(s.path(key), value, 0o600)
}

func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[filestore.Delete] remove")
	}
	return nil
}

// path encodes the key so dots and separators in logical keys
// (e.g. "creatoros.auth.tokens") cannot escape the data directory.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key)))
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "[filestore] create temp")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "[filestore] write temp")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "[filestore] fsync temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore] close temp")
	}
	_ = os.Chmod(tmpPath, perm)
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "[filestore] rename")
	}
	return nil
}
