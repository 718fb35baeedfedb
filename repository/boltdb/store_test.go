package boltdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

const testCollection = "things"

type StoreSuite struct {
	suite.Suite
	store *DocumentStore
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	store, err := Open(filepath.Join(s.T().TempDir(), "data", "store.db"), testCollection)
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// =============================================================================
// Insert / Find
// =============================================================================

func (s *StoreSuite) TestInsertAndFind() {
	s.Run("assigns id and version", func() {
		s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{"name": "first"}))

		doc, err := s.store.FindOne(s.ctx, testCollection, repository.Filter{"name": "first"})
		s.Require().NoError(err)
		s.NotEmpty(doc.ID())
		s.Equal(int64(1), doc.Version())
	})

	s.Run("duplicate key is rejected", func() {
		doc := repository.Document{repository.IDField: "k1", "name": "one"}
		s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, doc))

		err := s.store.InsertOne(s.ctx, testCollection, repository.Document{repository.IDField: "k1"})
		s.ErrorIs(err, domain.ErrDuplicateKey)
	})

	s.Run("missing document", func() {
		_, err := s.store.FindOne(s.ctx, testCollection, repository.Filter{repository.IDField: "nope"})
		s.ErrorIs(err, domain.ErrDocumentNotFound)
	})

	s.Run("unknown collection yields nothing", func() {
		docs, err := s.store.FindMany(s.ctx, "ghosts", repository.Filter{}, repository.FindOptions{})
		s.Require().NoError(err)
		s.Empty(docs)
	})
}

func (s *StoreSuite) TestFindManySortAndLimit() {
	for i, name := range []string{"b", "c", "a"} {
		s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{
			"name":  name,
			"group": "g",
			"rank":  i,
		}))
	}
	s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{"name": "z", "group": "other"}))

	docs, err := s.store.FindMany(s.ctx, testCollection, repository.Filter{"group": "g"}, repository.FindOptions{
		Sort:  []repository.Sort{{Field: "name", Order: repository.Ascending}},
		Limit: 2,
	})
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("a", docs[0]["name"])
	s.Equal("b", docs[1]["name"])

	docs, err = s.store.FindMany(s.ctx, testCollection, repository.Filter{"group": "g"}, repository.FindOptions{
		Sort: []repository.Sort{{Field: "rank", Order: repository.Descending}},
	})
	s.Require().NoError(err)
	s.Require().Len(docs, 3)
	s.Equal("a", docs[0]["name"])
}

// =============================================================================
// UpdateOne
// =============================================================================

func (s *StoreSuite) TestUpdateMergesAndBumpsVersion() {
	s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{
		repository.IDField: "doc",
		"profile":          map[string]any{"name": "Acme", "industry": "food"},
	}))

	err := s.store.UpdateOne(s.ctx, testCollection,
		repository.Filter{repository.IDField: "doc"},
		repository.Document{"profile": map[string]any{"industry": "textiles"}},
		repository.UpdateOptions{},
	)
	s.Require().NoError(err)

	doc, err := s.store.FindOne(s.ctx, testCollection, repository.Filter{repository.IDField: "doc"})
	s.Require().NoError(err)
	s.Equal(int64(2), doc.Version())
	s.Equal(map[string]any{"name": "Acme", "industry": "textiles"}, doc["profile"])
}

func (s *StoreSuite) TestUpdateWithoutMatch() {
	s.Run("not found without upsert", func() {
		err := s.store.UpdateOne(s.ctx, testCollection,
			repository.Filter{repository.IDField: "missing"},
			repository.Document{"x": 1},
			repository.UpdateOptions{},
		)
		s.ErrorIs(err, domain.ErrDocumentNotFound)
	})

	s.Run("upsert seeds the document from the filter", func() {
		err := s.store.UpdateOne(s.ctx, testCollection,
			repository.Filter{repository.IDField: "new", "meta.kind": "seed"},
			repository.Document{"x": 1},
			repository.UpdateOptions{Upsert: true},
		)
		s.Require().NoError(err)

		doc, err := s.store.FindOne(s.ctx, testCollection, repository.Filter{repository.IDField: "new"})
		s.Require().NoError(err)
		s.Equal(int64(1), doc.Version())
		s.Equal(float64(1), doc["x"])
		s.Equal(map[string]any{"kind": "seed"}, doc["meta"])
	})
}

func (s *StoreSuite) TestOptimisticVersion() {
	filter := repository.Filter{repository.IDField: "v"}

	s.Require().NoError(s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"n": 1},
		repository.UpdateOptions{Upsert: true, ExpectVersion: repository.Int64(0)}))

	err := s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"n": 2},
		repository.UpdateOptions{Upsert: true, ExpectVersion: repository.Int64(0)})
	s.ErrorIs(err, domain.ErrVersionConflict)

	s.Require().NoError(s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"n": 2},
		repository.UpdateOptions{Upsert: true, ExpectVersion: repository.Int64(1)}))

	doc, err := s.store.FindOne(s.ctx, testCollection, filter)
	s.Require().NoError(err)
	s.Equal(float64(2), doc["n"])
	s.Equal(int64(2), doc.Version())
}

func (s *StoreSuite) TestUpdateCommitsInsertsTogether() {
	filter := repository.Filter{repository.IDField: "acct"}
	log := repository.Insert{Collection: "log", Doc: repository.Document{repository.IDField: "acct/1", "n": 1}}

	s.Require().NoError(s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"n": 1},
		repository.UpdateOptions{Upsert: true, ExpectVersion: repository.Int64(0), Inserts: []repository.Insert{log}}))

	entry, err := s.store.FindOne(s.ctx, "log", repository.Filter{repository.IDField: "acct/1"})
	s.Require().NoError(err)
	s.Equal(int64(1), entry.Version())

	// Reusing the insert key fails the whole write.
	err = s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"n": 2},
		repository.UpdateOptions{ExpectVersion: repository.Int64(1), Inserts: []repository.Insert{log}})
	s.ErrorIs(err, domain.ErrDuplicateKey)

	doc, err := s.store.FindOne(s.ctx, testCollection, filter)
	s.Require().NoError(err)
	s.Equal(float64(1), doc["n"])
	s.Equal(int64(1), doc.Version())
}

func (s *StoreSuite) TestConcurrentVersionedWritesConflict() {
	filter := repository.Filter{repository.IDField: "race"}
	s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{repository.IDField: "race"}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.store.UpdateOne(s.ctx, testCollection, filter, repository.Document{"writer": i},
				repository.UpdateOptions{ExpectVersion: repository.Int64(1)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, succeeded)
}

func (s *StoreSuite) TestDistinct() {
	for _, id := range []string{"b", "a", "b"} {
		s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{"owner": id}))
	}
	s.Require().NoError(s.store.InsertOne(s.ctx, testCollection, repository.Document{"other": 1}))

	values, err := s.store.Distinct(s.ctx, testCollection, "owner")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b"}, values)
}

func (s *StoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.store.InsertOne(ctx, testCollection, repository.Document{"x": 1})
	s.ErrorIs(err, context.Canceled)
	s.Require().NoError(s.store.Ping(s.ctx))
}
