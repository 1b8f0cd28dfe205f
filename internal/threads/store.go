// Package threads persists named conversation threads so a later query can
// continue from the last answer.
package threads

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketName = []byte("threads")

// ErrNotFound is returned when a thread does not exist.
var ErrNotFound = errors.New("thread not found")

// ErrInvalidName is returned for empty or blank thread names.
var ErrInvalidName = errors.New("invalid thread name")

// Thread is the follow-up state saved under a name.
type Thread struct {
	Name      string                 `json:"name"`
	FollowUp  models.FollowUpContext `json:"follow_up"`
	Turns     int                    `json:"turns"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Store keeps threads in a bbolt file. One process holds the file at a time.
type Store struct {
	db  *bbolt.DB
	log *zap.Logger
}

// Open opens or creates the thread database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create threads directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open threads database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize threads database: %w", err)
	}

	log.Debug("thread store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func key(name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	return []byte(name), nil
}

// Get returns the thread called name.
func (s *Store) Get(name string) (Thread, error) {
	var thread Thread
	k, err := key(name)
	if err != nil {
		return thread, err
	}

	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get(k)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return json.Unmarshal(data, &thread)
	})
	return thread, err
}

// Put records the follow-up state of a new turn on the thread, creating it
// when needed.
func (s *Store) Put(name string, followUp models.FollowUpContext) (Thread, error) {
	var thread Thread
	k, err := key(name)
	if err != nil {
		return thread, err
	}

	now := time.Now().UTC()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if data := b.Get(k); data != nil {
			if err := json.Unmarshal(data, &thread); err != nil {
				return fmt.Errorf("corrupt thread %s: %w", name, err)
			}
		} else {
			thread = Thread{Name: string(k), CreatedAt: now}
		}

		thread.FollowUp = followUp
		if thread.FollowUp.Attachments == nil {
			thread.FollowUp.Attachments = []string{}
		}
		thread.Turns++
		thread.UpdatedAt = now

		data, err := json.Marshal(thread)
		if err != nil {
			return err
		}
		return b.Put(k, data)
	})
	if err != nil {
		return Thread{}, err
	}

	s.log.Debug("thread saved", zap.String("thread", thread.Name), zap.Int("turns", thread.Turns))
	return thread, nil
}

// Delete removes the thread called name.
func (s *Store) Delete(name string) error {
	k, err := key(name)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(k) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return b.Delete(k)
	})
}

// List returns every thread ordered by name.
func (s *Store) List() ([]Thread, error) {
	threads := []Thread{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var thread Thread
			if err := json.Unmarshal(v, &thread); err != nil {
				return err
			}
			threads = append(threads, thread)
			return nil
		})
	})
	return threads, err
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
