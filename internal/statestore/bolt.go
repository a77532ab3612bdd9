// Package statestore persists ledger snapshots in a local bbolt file.
package statestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"rubyscore/internal/ledger"
)

var (
	bucketState = []byte("state")
	keyLedger   = []byte("ledger")
	keyChecksum = []byte("ledger_sha256")
	keySavedAt  = []byte("saved_at")
)

type BoltStore struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Save(st ledger.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	sum := sha256.Sum256(blob)
	savedAt, _ := time.Now().UTC().MarshalText()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if err := b.Put(keyLedger, blob); err != nil {
			return err
		}
		if err := b.Put(keyChecksum, sum[:]); err != nil {
			return err
		}
		return b.Put(keySavedAt, savedAt)
	})
}

// Load returns the stored state. ok is false when nothing was saved yet.
func (s *BoltStore) Load() (st ledger.State, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		blob := b.Get(keyLedger)
		if blob == nil {
			return nil
		}
		sum := sha256.Sum256(blob)
		if stored := b.Get(keyChecksum); !bytes.Equal(stored, sum[:]) {
			return fmt.Errorf("state checksum mismatch")
		}
		if err := json.Unmarshal(blob, &st); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		ok = true
		return nil
	})
	return st, ok, err
}

// SavedAt reports when the state was last written.
func (s *BoltStore) SavedAt() (time.Time, error) {
	var at time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketState).Get(keySavedAt)
		if raw == nil {
			return nil
		}
		return at.UnmarshalText(raw)
	})
	return at, err
}

type Snapshotter interface {
	Snapshot() ledger.State
}

// DefaultInterval is used by Keep when given a non-positive interval.
const DefaultInterval = 30 * time.Second

// Keep saves src every interval and once more when ctx is done.
func (s *BoltStore) Keep(ctx context.Context, src Snapshotter, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		logger.Warn("snapshot interval not positive, using default",
			zap.Duration("interval", interval), zap.Duration("default", DefaultInterval))
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Save(src.Snapshot()); err != nil {
				logger.Error("final snapshot failed", zap.Error(err))
				return err
			}
			logger.Info("final snapshot saved")
			return nil
		case <-ticker.C:
			if err := s.Save(src.Snapshot()); err != nil {
				logger.Warn("snapshot failed", zap.Error(err))
			}
		}
	}
}
