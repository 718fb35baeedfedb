package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type checkpointStore struct {
	store repository.DocumentStore
	now   func() time.Time
}

// NewCheckpointStore records finished (run, business) pairs for resumable sweeps.
func NewCheckpointStore(store repository.DocumentStore) repository.CheckpointStore {
	return &checkpointStore{store: store, now: time.Now}
}

func (c *checkpointStore) Done(ctx context.Context, runID, businessID string) (bool, error) {
	_, err := c.store.FindOne(ctx, repository.CollectionSweepCheckpoints, repository.Filter{
		repository.IDField: checkpointKey(runID, businessID),
	})
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *checkpointStore) MarkDone(ctx context.Context, runID, businessID string) error {
	err := c.store.InsertOne(ctx, repository.CollectionSweepCheckpoints, repository.Document{
		repository.IDField: checkpointKey(runID, businessID),
		"run_id":           runID,
		"business_id":      businessID,
		"completed_at":     c.now().UTC(),
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		return nil
	}
	return err
}

func checkpointKey(runID, businessID string) string {
	return runID + "/" + businessID
}
