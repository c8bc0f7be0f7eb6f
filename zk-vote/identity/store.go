package identity

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the local key/value storage owned by the Manager.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Close() error
}

type PebbleStore struct {
	db *pebble.DB
}

var _ Store = (*PebbleStore)(nil)

// OpenPebble opens a pebble database in dir. A nil fs means the OS filesystem.
func OpenPebble(dir string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open identity store at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	// v is only valid until closer.Close
	ret := make([]byte, len(v))
	copy(ret, v)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *PebbleStore) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
