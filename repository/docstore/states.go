package docstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type stateRepository struct {
	store repository.DocumentStore
}

// NewStateRepository stores one document per business, keyed by business id.
func NewStateRepository(store repository.DocumentStore) repository.StateRepository {
	return &stateRepository{store: store}
}

func (r *stateRepository) Get(ctx context.Context, businessID string) (*domain.BusinessState, error) {
	doc, err := r.store.FindOne(ctx, repository.CollectionBusinessStates, repository.Filter{repository.IDField: businessID})
	if err != nil {
		return nil, err
	}
	var state domain.BusinessState
	if err := repository.FromDocument(doc, &state); err != nil {
		return nil, err
	}
	state.Version = doc.Version()
	return &state, nil
}

func (r *stateRepository) Save(ctx context.Context, state *domain.BusinessState, expectVersion int64, changes ...domain.StateChangeRecord) error {
	if state == nil || state.BusinessID == "" {
		return domain.ErrInvalidPayload
	}
	doc, err := repository.ToDocument(state)
	if err != nil {
		return err
	}
	doc[repository.IDField] = state.BusinessID
	delete(doc, "version")

	inserts := make([]repository.Insert, 0, len(changes))
	for _, record := range changes {
		change, err := changeDocument(record)
		if err != nil {
			return err
		}
		inserts = append(inserts, repository.Insert{Collection: repository.CollectionStateChanges, Doc: change})
	}

	return r.store.UpdateOne(ctx, repository.CollectionBusinessStates,
		repository.Filter{repository.IDField: state.BusinessID},
		doc,
		repository.UpdateOptions{
			Upsert:        true,
			ExpectVersion: repository.Int64(expectVersion),
			Inserts:       inserts,
		},
	)
}

func changeDocument(record domain.StateChangeRecord) (repository.Document, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	doc, err := repository.ToDocument(record)
	if err != nil {
		return nil, err
	}
	doc[repository.IDField] = record.ID
	doc[repository.SortField] = sortKey(record.Timestamp)
	return doc, nil
}

func (r *stateRepository) History(ctx context.Context, businessID string, limit int) ([]domain.StateChangeRecord, error) {
	docs, err := r.store.FindMany(ctx, repository.CollectionStateChanges,
		repository.Filter{"business_id": businessID},
		repository.FindOptions{Sort: newestFirst, Limit: clampLimit(limit)},
	)
	if err != nil {
		return nil, err
	}
	records := make([]domain.StateChangeRecord, 0, len(docs))
	for _, doc := range docs {
		var rec domain.StateChangeRecord
		if err := repository.FromDocument(doc, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *stateRepository) BusinessIDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.Distinct(ctx, repository.CollectionBusinessStates, "business_id")
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
