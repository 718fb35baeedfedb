package buffer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrFull is returned by Enqueue once the outbox holds maxSize events.
	ErrFull = errors.New("buffer: outbox is full")
	// ErrNoEventID rejects items that cannot be deduplicated.
	ErrNoEventID = errors.New("buffer: item has no event id")
)

// Store is a bolt-backed outbox for events the primary event store rejected.
//
// Two buckets are kept in step: the queue, ordered by priority rank and age, and an
// index from event id to queue key. An event is held at most once.
type Store struct {
	db      *bolt.DB
	queue   []byte
	index   []byte
	maxSize int
}

// Open creates the file and its buckets. maxSize <= 0 means unbounded.
func Open(path string, bucket string, maxSize int) (*Store, error) {
	if bucket == "" {
		bucket = "outbox"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", path, err)
	}

	s := &Store{
		db:      db,
		queue:   []byte(bucket),
		index:   []byte(bucket + "_index"),
		maxSize: maxSize,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.queue, s.index} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue retains item. An event that is already retained is left as it is.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if item.EventID == "" {
		return ErrNoEventID
	}
	item.normalize()

	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(s.index)
		if index.Get([]byte(item.EventID)) != nil {
			return nil
		}
		if s.maxSize > 0 && index.Stats().KeyN >= s.maxSize {
			return ErrFull
		}
		return s.put(tx, item)
	})
}

// GetBatch returns up to limit items, most urgent first, without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	items := make([]Item, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.queue).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove forgets the event behind item. Unknown events are ignored.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.delete(tx, item.EventID)
	})
}

// Requeue stores item's new retry count and moves it behind its peers of the same priority.
func (s *Store) Requeue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.Timestamp = time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.delete(tx, item.EventID); err != nil {
			return err
		}
		return s.put(tx, item)
	})
}

// Size returns the number of retained events.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.index).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items retained before olderThan and reports how many went.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var stale []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.queue).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.Timestamp.Before(olderThan) {
				stale = append(stale, item.EventID)
			}
		}
		for _, id := range stale {
			if err := s.delete(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) put(tx *bolt.Tx, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := queueKey(item)
	if err := tx.Bucket(s.queue).Put(key, payload); err != nil {
		return err
	}
	return tx.Bucket(s.index).Put([]byte(item.EventID), key)
}

func (s *Store) delete(tx *bolt.Tx, eventID string) error {
	if eventID == "" {
		return nil
	}
	index := tx.Bucket(s.index)
	key := index.Get([]byte(eventID))
	if key == nil {
		return nil
	}
	if err := tx.Bucket(s.queue).Delete(key); err != nil {
		return err
	}
	return index.Delete([]byte(eventID))
}

// queueKey sorts by priority rank, then retention time.
func queueKey(item Item) []byte {
	return []byte(fmt.Sprintf("%d_%020d_%s", item.Priority, item.Timestamp.UnixNano(), item.EventID))
}
