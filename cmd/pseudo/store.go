package main

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	sessionBucket = "session"
	sessionKey    = "last-session-code"
)

// sessionStore persists the most recent source text under a fixed key, so
// running pseudo with no file picks up where the last run left off.
type sessionStore struct {
	db *bolt.DB
}

func openSessionStore() (*sessionStore, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(cfgDir, "pseudo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "session.db"), 0o600, nil)
	if err != nil {
		return nil, err
	}
	return &sessionStore{db: db}, nil
}

func (s *sessionStore) Save(source string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(sessionKey), []byte(source))
	})
}

func (s *sessionStore) Load() (string, bool, error) {
	var source []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if b == nil {
			return nil
		}
		source = append([]byte(nil), b.Get([]byte(sessionKey))...)
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if len(source) == 0 {
		return "", false, nil
	}
	return string(source), true, nil
}

func (s *sessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// loadSource resolves the program text: an explicit file wins and refreshes
// the session store; otherwise the stored last-session code is used.
func loadSource(file string) (string, error) {
	store, storeErr := openSessionStore()
	if storeErr == nil {
		defer store.Close()
	}

	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		if storeErr == nil {
			// best effort; a read-only config dir should not block the run
			_ = store.Save(string(b))
		}
		return string(b), nil
	}

	if storeErr != nil {
		return "", fmt.Errorf("no source file given and no session store: %w", storeErr)
	}
	source, ok, err := store.Load()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no source file given and no stored session")
	}
	return source, nil
}
