// Package store persists interview records in an embedded badger database.
//
// Records are JSON documents:
//   - interviews: key = "interview:<id>"
//   - per-user index: key = "user-interview:<userID>:<id>" (empty value)
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("interview not found")

type Interview struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	Kind       string    `json:"type"`
	Level      string    `json:"level"`
	TechStack  []string  `json:"techstack"`
	Questions  []string  `json:"questions"`
	Finalized  bool      `json:"finalized"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Store struct {
	db *badger.DB
}

// Open opens the store under dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open interview store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func interviewKey(id string) []byte {
	return []byte("interview:" + id)
}

func userIndexPrefix(userID string) []byte {
	return []byte("user-interview:" + userID + ":")
}

func (s *Store) Put(ctx context.Context, interview Interview) error {
	if interview.ID == "" {
		return errors.New("interview id not set")
	}

	buf, err := json.Marshal(interview)
	if err != nil {
		return fmt.Errorf("failed to marshal interview: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(interviewKey(interview.ID), buf); err != nil {
			return err
		}
		if interview.UserID == "" {
			return nil
		}
		return txn.Set(append(userIndexPrefix(interview.UserID), interview.ID...), nil)
	})
}

func (s *Store) Get(ctx context.Context, id string) (Interview, error) {
	var out Interview
	err := s.db.View(func(txn *badger.Txn) error {
		return getInterview(txn, id, &out)
	})
	if err != nil {
		return Interview{}, err
	}
	return out, nil
}

// ListByUser returns the user's interviews, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Interview, error) {
	var list []Interview
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := userIndexPrefix(userID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			id := string(it.Item().Key()[len(prefix):])
			var interview Interview
			if err := getInterview(txn, id, &interview); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			list = append(list, interview)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(list, func(a, b Interview) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list, nil
}

func getInterview(txn *badger.Txn, id string, out *Interview) error {
	item, err := txn.Get(interviewKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
