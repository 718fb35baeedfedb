package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DocumentStore keeps each collection in its own bucket, keyed by _id, values as JSON.
type DocumentStore struct {
	db *bolt.DB
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// Open initializes the BoltDB file and ensures a bucket exists for every collection.
func Open(path string, collections ...string) (*DocumentStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if len(collections) == 0 {
		collections = repository.Collections()
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, c := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &DocumentStore{db: db}, nil
}

func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc repository.Document) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ins, err := prepareInserts([]repository.Insert{{Collection: collection, Doc: doc}})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return putNew(tx, ins)
	})
}

type preparedInsert struct {
	collection string
	id         string
	payload    []byte
}

func prepareInserts(inserts []repository.Insert) ([]preparedInsert, error) {
	out := make([]preparedInsert, 0, len(inserts))
	for _, in := range inserts {
		doc, err := repository.PrepareInsert(in.Doc)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, preparedInsert{collection: in.Collection, id: doc.ID(), payload: payload})
	}
	return out, nil
}

// putNew writes inserts inside tx; an existing key aborts the whole transaction.
func putNew(tx *bolt.Tx, inserts []preparedInsert) error {
	for _, in := range inserts {
		b, err := tx.CreateBucketIfNotExists([]byte(in.collection))
		if err != nil {
			return err
		}
		if b.Get([]byte(in.id)) != nil {
			return domain.ErrDuplicateKey
		}
		if err := b.Put([]byte(in.id), in.payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *DocumentStore) FindOne(ctx context.Context, collection string, filter repository.Filter) (repository.Document, error) {
	docs, err := s.FindMany(ctx, collection, filter, repository.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

func (s *DocumentStore) FindMany(ctx context.Context, collection string, filter repository.Filter, opts repository.FindOptions) ([]repository.Document, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	normalized, err := repository.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	var docs []repository.Document
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		// A key lookup avoids the full scan.
		if id, ok := normalized[repository.IDField].(string); ok {
			doc, err := decode(b.Get([]byte(id)))
			if err != nil || doc == nil {
				return err
			}
			if repository.Matches(doc, normalized) {
				docs = append(docs, doc)
			}
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			doc, err := decode(v)
			if err != nil {
				return err
			}
			if repository.Matches(doc, normalized) {
				docs = append(docs, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	repository.SortDocuments(docs, opts.Sort)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// UpdateOne merges patch into the first matching document inside a single write
// transaction, so the version check, the write and opts.Inserts are atomic.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, filter repository.Filter, patch repository.Document, opts repository.UpdateOptions) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := repository.NormalizeFilter(filter)
	if err != nil {
		return err
	}
	normalizedPatch, err := repository.NormalizeMap(patch)
	if err != nil {
		return err
	}
	delete(normalizedPatch, repository.VersionField)
	inserts, err := prepareInserts(opts.Inserts)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}

		key, current, err := findFirst(b, normalized)
		if err != nil {
			return err
		}

		var version int64
		if current != nil {
			version = current.Version()
		}
		if opts.ExpectVersion != nil && *opts.ExpectVersion != version {
			return domain.ErrVersionConflict
		}

		if current == nil {
			if !opts.Upsert {
				return domain.ErrDocumentNotFound
			}
			current = repository.Expand(normalized)
			if id := normalizedPatch.ID(); id != "" {
				current[repository.IDField] = id
			}
			if current.ID() == "" {
				current[repository.IDField] = uuid.NewString()
			}
			key = []byte(current.ID())
		} else {
			// _id is immutable once stored.
			delete(normalizedPatch, repository.IDField)
		}

		merged := repository.Merge(current, normalizedPatch)
		merged[repository.VersionField] = float64(version + 1)

		payload, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if err := b.Put(key, payload); err != nil {
			return err
		}
		return putNew(tx, inserts)
	})
}

func (s *DocumentStore) Distinct(ctx context.Context, collection string, field string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var values []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			doc, err := decode(v)
			if err != nil {
				return err
			}
			raw, ok := repository.Lookup(doc, field)
			if !ok {
				return nil
			}
			str, ok := raw.(string)
			if !ok || str == "" {
				return nil
			}
			if _, dup := seen[str]; !dup {
				seen[str] = struct{}{}
				values = append(values, str)
			}
			return nil
		})
	})
	return values, err
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the Bolt database.
func (s *DocumentStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *DocumentStore) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *DocumentStore) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return ctx.Err()
}

func findFirst(b *bolt.Bucket, filter repository.Filter) ([]byte, repository.Document, error) {
	if id, ok := filter[repository.IDField].(string); ok {
		doc, err := decode(b.Get([]byte(id)))
		if err != nil || doc == nil || !repository.Matches(doc, filter) {
			return nil, nil, err
		}
		return []byte(id), doc, nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		doc, err := decode(v)
		if err != nil {
			return nil, nil, err
		}
		if repository.Matches(doc, filter) {
			return append([]byte(nil), k...), doc, nil
		}
	}
	return nil, nil, nil
}

func decode(raw []byte) (repository.Document, error) {
	if raw == nil {
		return nil, nil
	}
	var doc repository.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
