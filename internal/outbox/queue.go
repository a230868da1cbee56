package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// Queue is the offline transaction queue service. It never applies
// accounting validation: payloads are checked only when they reach the
// posting engine during a sync run.
type Queue struct {
	store *Store
	now   func() time.Time
}

// NewQueue constructs the queue over its embedded store.
func NewQueue(store *Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (q *Queue) WithNow(now func() time.Time) {
	if now != nil {
		q.now = now
	}
}

// Enqueue persists a pending record and returns its generated id.
func (q *Queue) Enqueue(ctx context.Context, payload ledger.PostingInput, userID, shopID string) (string, error) {
	record := &PendingTransactionRecord{
		ID:          uuid.NewString(),
		Transaction: payload,
		Timestamp:   q.now().UTC(),
		UserID:      userID,
		ShopID:      shopID,
		Status:      StatusPending,
	}
	if err := q.store.Put(ctx, record); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Get returns one record.
func (q *Queue) Get(ctx context.Context, id string) (*PendingTransactionRecord, error) {
	return q.store.Get(ctx, id)
}

// List returns queued records, optionally scoped to a shop.
func (q *Queue) List(ctx context.Context, shopID string) ([]PendingTransactionRecord, error) {
	return q.store.List(ctx, shopID)
}

// ListByStatus returns queued records in one state.
func (q *Queue) ListByStatus(ctx context.Context, status Status, shopID string) ([]PendingTransactionRecord, error) {
	return q.store.ListByStatus(ctx, status, shopID)
}

// CountPending counts records awaiting submission.
func (q *Queue) CountPending(ctx context.Context, shopID string) (int, error) {
	return q.store.CountByStatus(ctx, StatusPending, shopID)
}

// SetStatus transitions a record. Entering the failed state records the
// error message and increments the retry count.
func (q *Queue) SetStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	record, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if status == StatusFailed && record.Status != StatusFailed {
		record.RetryCount++
	}
	record.Status = status
	record.ErrorMessage = errorMessage
	if status != StatusFailed {
		record.ErrorMessage = ""
	}
	return q.store.Put(ctx, record)
}

// Remove deletes a record, normally after a confirmed remote write.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}

// Edit replaces the payload of a record that is not mid-sync.
func (q *Queue) Edit(ctx context.Context, id string, payload ledger.PostingInput) error {
	record, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.Status == StatusSyncing {
		return &shared.StateError{Reason: "record is being synced"}
	}
	record.Transaction = payload
	return q.store.Put(ctx, record)
}

// ResetFailed returns every failed record to pending, for a retry run.
func (q *Queue) ResetFailed(ctx context.Context, shopID string) (int, error) {
	failed, err := q.store.ListByStatus(ctx, StatusFailed, shopID)
	if err != nil {
		return 0, err
	}
	for i := range failed {
		record := failed[i]
		record.Status = StatusPending
		record.ErrorMessage = ""
		if err := q.store.Put(ctx, &record); err != nil {
			return i, err
		}
	}
	return len(failed), nil
}
