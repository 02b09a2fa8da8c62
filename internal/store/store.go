// Package store provides a BoltDB-backed cache of discovered simulator hosts.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"xpref/internal/wire"
)

var hostsBucket = []byte("sim_hosts")

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("host not found")

// HostRecord is a simulator host seen by discovery.
type HostRecord struct {
	Host      wire.HostInfo `msgpack:"host"`
	FirstSeen time.Time     `msgpack:"first_seen"`
	LastSeen  time.Time     `msgpack:"last_seen"`
	SeenCount uint64        `msgpack:"seen_count"`
}

// Key identifies the record of host.
func Key(host wire.HostInfo) string {
	return host.Addr()
}

// Store wraps a bbolt database of host records.
type Store struct {
	db  *bolt.DB
	mu  sync.RWMutex
	log zerolog.Logger
}

// New opens or creates a BoltDB file at the given path.
func New(path string, log zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(hostsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating hosts bucket: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Open creates the parent directory of path if needed, then opens the store.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return New(path, log)
}

// Close closes the underlying BoltDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert records a sighting of host and returns the updated record.
func (s *Store) Upsert(host wire.HostInfo) (HostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record HostRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(hostsBucket)
		key := []byte(Key(host))
		now := time.Now()

		if existing := b.Get(key); existing != nil {
			if err := msgpack.Unmarshal(existing, &record); err != nil {
				s.log.Warn().Err(err).Str("key", string(key)).Msg("Failed to unmarshal existing record, overwriting")
				record = HostRecord{FirstSeen: now}
			}
			record.Host = host
			record.LastSeen = now
			record.SeenCount++

			s.log.Debug().
				Str("key", string(key)).
				Str("hostname", host.Hostname).
				Msg("Host updated")
		} else {
			record = HostRecord{
				Host:      host,
				FirstSeen: now,
				LastSeen:  now,
				SeenCount: 1,
			}

			s.log.Info().
				Str("key", string(key)).
				Str("hostname", host.Hostname).
				Int32("sim_version", host.SimVersion).
				Msg("New simulator host cached")
		}

		data, err := msgpack.Marshal(&record)
		if err != nil {
			return fmt.Errorf("marshaling host record: %w", err)
		}
		return b.Put(key, data)
	})
	return record, err
}

// Get returns the record stored under key.
func (s *Store) Get(key string) (HostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record HostRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(hostsBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err := msgpack.Unmarshal(v, &record); err != nil {
			return fmt.Errorf("unmarshaling record: %w", err)
		}
		return nil
	})
	return record, err
}

// GetAll returns all host records, most recently seen first.
func (s *Store) GetAll() ([]HostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []HostRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(hostsBucket)
		return b.ForEach(func(k, v []byte) error {
			var record HostRecord
			if err := msgpack.Unmarshal(v, &record); err != nil {
				s.log.Warn().Err(err).Str("key", string(k)).Msg("Skipping corrupt record")
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastSeen.After(records[j].LastSeen)
	})
	return records, err
}

// Latest returns the most recently seen host.
func (s *Store) Latest() (HostRecord, error) {
	all, err := s.GetAll()
	if err != nil {
		return HostRecord{}, err
	}
	if len(all) == 0 {
		return HostRecord{}, ErrNotFound
	}
	return all[0], nil
}

// Prune deletes hosts not seen within threshold and returns how many were removed.
func (s *Store) Prune(threshold time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(hostsBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var record HostRecord
			if err := msgpack.Unmarshal(v, &record); err != nil {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if record.LastSeen.Before(cutoff) {
				s.log.Info().
					Str("key", string(k)).
					Str("hostname", record.Host.Hostname).
					Time("last_seen", record.LastSeen).
					Msg("Host pruned")
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning hosts: %w", err)
	}
	return removed, nil
}
