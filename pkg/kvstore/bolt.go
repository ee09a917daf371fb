package kvstore

import (
	"fmt"
	"time"

	"github.com/pion/logging"
	bolt "go.etcd.io/bbolt"
)

// kvBucket is the single bucket all keys live in. The store's flat string
// namespace (Fabric{XX}, O/dflt, O/cur, O/tok) does not need further
// bucket partitioning.
var kvBucket = []byte("kv")

// BoltStoreConfig configures a BoltStore.
type BoltStoreConfig struct {
	// Path is the file path of the bbolt database. Required.
	Path string

	// Timeout bounds how long Open waits to acquire the file lock.
	// Defaults to 1 second.
	Timeout time.Duration

	// LoggerFactory creates loggers for the store. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

// BoltStore is a Store implementation backed by an embedded bbolt database
// file, giving the fabric table and OTA persistence durable storage across
// reboots without an external database process.
type BoltStore struct {
	db  *bolt.DB
	log logging.LeveledLogger
}

// OpenBoltStore opens (creating if necessary) a bbolt-backed store at the
// configured path.
func OpenBoltStore(config BoltStoreConfig) (*BoltStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("kvstore: bolt store path is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(config.Path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: create bucket: %w", err)
	}

	s := &BoltStore{db: db}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("kvstore")
	}

	return s, nil
}

// Get returns the value stored under key, or ErrNotFound if absent.
func (s *BoltStore) Get(key string) ([]byte, error) {
	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvBucket)
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key, replacing any existing value.
func (s *BoltStore) Set(key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("kvstore: set %q: %w", key, err)
	}
	if s.log != nil {
		s.log.Debugf("set %q (%d bytes)", key, len(value))
	}
	return nil
}

// Delete removes key. It is not an error to delete an absent key.
func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Verify BoltStore implements Store.
var _ Store = (*BoltStore)(nil)
