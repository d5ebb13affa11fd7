// Package storage keeps a history of completed runs in a bbolt file.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"portalsim/internal/config"
	"portalsim/internal/stats"
)

const (
	BucketRuns    = "runs"
	BucketByStart = "runs_by_start"

	// MaxRecords bounds the history; the oldest runs are pruned on Save.
	MaxRecords = 100
)

var ErrNotFound = errors.New("storage: run not found")

// Record is one finished (or interrupted) run.
type Record struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Config    config.Config `json:"config"`
	Summary   stats.Summary `json:"summary"`
}

type Store struct {
	db *bbolt.DB
}

// DefaultPath is ~/.portalsim/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".portalsim", "history.db"), nil
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{BucketRuns, BucketByStart} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// startKey sorts by start time, then by id for runs started in the same nanosecond.
func startKey(r Record) []byte {
	key := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(key, uint64(r.Timestamp.UnixNano()))
	return append(key, r.ID...)
}

func (s *Store) Save(r Record) error {
	if r.ID == "" {
		return errors.New("storage: record has no id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(BucketRuns))
		index := tx.Bucket([]byte(BucketByStart))

		if err := runs.Put([]byte(r.ID), data); err != nil {
			return err
		}
		if err := index.Put(startKey(r), []byte(r.ID)); err != nil {
			return err
		}

		// Prune the oldest entries beyond MaxRecords.
		c := index.Cursor()
		excess := -MaxRecords
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, v := c.First(); k != nil && excess > 0; k, v = c.First() {
			if err := runs.Delete(v); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Record, error) {
	var items []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(BucketRuns))
		c := tx.Bucket([]byte(BucketByStart)).Cursor()

		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(items) >= limit {
				break
			}
			v := runs.Get(id)
			if v == nil {
				continue
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode run %s: %w", id, err)
			}
			items = append(items, r)
		}
		return nil
	})
	return items, err
}

func (s *Store) Get(id string) (Record, error) {
	var r Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}
