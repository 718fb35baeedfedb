package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type thresholdLedger struct {
	store repository.DocumentStore
}

// NewThresholdLedger keys records by business/certification/threshold so the
// store's duplicate-key check provides the at-most-once guarantee.
func NewThresholdLedger(store repository.DocumentStore) repository.ThresholdLedger {
	return &thresholdLedger{store: store}
}

func (l *thresholdLedger) Claim(ctx context.Context, rec domain.ThresholdRecord) (bool, error) {
	doc, err := repository.ToDocument(rec)
	if err != nil {
		return false, err
	}
	key := ThresholdKey(rec.BusinessID, rec.CertificationID, rec.Threshold)
	doc[repository.IDField] = key
	doc["released"] = false

	err = l.store.InsertOne(ctx, repository.CollectionThresholdRecords, doc)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, domain.ErrDuplicateKey) {
		return false, err
	}

	// A released claim may be taken again; the released flag in the filter makes this a compare-and-set.
	err = l.store.UpdateOne(ctx, repository.CollectionThresholdRecords,
		repository.Filter{repository.IDField: key, "released": true},
		repository.Document{"released": false, "notified_at": rec.NotifiedAt},
		repository.UpdateOptions{},
	)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *thresholdLedger) Release(ctx context.Context, rec domain.ThresholdRecord) error {
	err := l.store.UpdateOne(ctx, repository.CollectionThresholdRecords,
		repository.Filter{repository.IDField: ThresholdKey(rec.BusinessID, rec.CertificationID, rec.Threshold)},
		repository.Document{"released": true},
		repository.UpdateOptions{},
	)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil
	}
	return err
}

func (l *thresholdLedger) Exists(ctx context.Context, businessID, certificationID string, threshold int) (bool, error) {
	_, err := l.store.FindOne(ctx, repository.CollectionThresholdRecords, repository.Filter{
		repository.IDField: ThresholdKey(businessID, certificationID, threshold),
		"released":         false,
	})
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ThresholdKey is the natural key of a threshold record.
func ThresholdKey(businessID, certificationID string, threshold int) string {
	return fmt.Sprintf("%s/%s/%d", businessID, certificationID, threshold)
}
