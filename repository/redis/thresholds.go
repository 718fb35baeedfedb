package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

// ThresholdLedger stores one key per business, certification and threshold. Keys never expire.
type ThresholdLedger struct {
	client *redislib.Client
	prefix string
}

var _ repository.ThresholdLedger = (*ThresholdLedger)(nil)

func NewThresholdLedger(client *redislib.Client, prefix string) *ThresholdLedger {
	return &ThresholdLedger{client: client, prefix: prefix + "threshold:"}
}

func (l *ThresholdLedger) Claim(ctx context.Context, rec domain.ThresholdRecord) (bool, error) {
	notifiedAt := rec.NotifiedAt
	if notifiedAt.IsZero() {
		notifiedAt = time.Now()
	}
	ok, err := l.client.SetNX(ctx, l.key(rec.BusinessID, rec.CertificationID, rec.Threshold),
		notifiedAt.UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, fmt.Errorf("claim threshold: %w", err)
	}
	return ok, nil
}

func (l *ThresholdLedger) Release(ctx context.Context, rec domain.ThresholdRecord) error {
	return l.client.Del(ctx, l.key(rec.BusinessID, rec.CertificationID, rec.Threshold)).Err()
}

func (l *ThresholdLedger) Exists(ctx context.Context, businessID, certificationID string, threshold int) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(businessID, certificationID, threshold)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *ThresholdLedger) key(businessID, certificationID string, threshold int) string {
	return fmt.Sprintf("%s%s/%s/%d", l.prefix, businessID, certificationID, threshold)
}
