// Package store implements a content-addressed blob store for page
// payloads, keyed by transaction hash. It is stateless beyond the
// filesystem and knows nothing about blocks — the chain engine and
// network layer decide when a payload is trustworthy enough to keep.
package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/internal/base62"
)

// DataUnit is a page payload: the concatenated bytes a Page
// transaction's data_hashes commit to.
type DataUnit []byte

// Store is a filesystem-backed content-addressed blob store rooted at
// <data>/data/.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data store directory")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id crypto.Hash) string {
	return filepath.Join(s.dir, base62.Encode(id.Bytes()))
}

// Put stores data under id, overwriting any existing payload. The
// write goes through a temp file plus rename so a concurrent Get never
// observes a partial payload.
func (s *Store) Put(id crypto.Hash, data DataUnit) error {
	finalPath := s.path(id)
	tmp, err := os.CreateTemp(s.dir, "pay-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp payload file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing payload")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing payload file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp payload file")
	}
	return os.Rename(tmpPath, finalPath)
}

// Get retrieves the payload stored under id.
func (s *Store) Get(id crypto.Hash) (DataUnit, bool) {
	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Has reports whether a payload is stored under id, without reading it.
func (s *Store) Has(id crypto.Hash) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}
