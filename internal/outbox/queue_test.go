package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/shared"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	queue := NewQueue(openTestStore(t))
	queue.WithNow(func() time.Time {
		return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	})
	return queue
}

func salePayload(amount float64) ledger.PostingInput {
	return ledger.PostingInput{
		ShopID:      "shop-1",
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Description: "offline sale",
		Type:        ledger.TypeSale,
		Entries: []ledger.EntryInput{
			{AccountID: "cash", Type: "debit", Amount: amount},
			{AccountID: "sales", Type: "credit", Amount: amount},
		},
	}
}

func TestEnqueueAssignsIDAndPendingStatus(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, salePayload(99.50), "user-1", "shop-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	record, err := queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, "user-1", record.UserID)
	assert.Zero(t, record.RetryCount)

	count, err := queue.CountPending(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetStatusFailedIncrementsRetryCount(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, salePayload(99.50), "user-1", "shop-1")
	require.NoError(t, err)

	require.NoError(t, queue.SetStatus(ctx, id, StatusFailed, "remote unavailable"))
	record, err := queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, record.RetryCount)
	assert.Equal(t, "remote unavailable", record.ErrorMessage)

	// Staying failed does not double-count.
	require.NoError(t, queue.SetStatus(ctx, id, StatusFailed, "still down"))
	record, err = queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, record.RetryCount)

	// Leaving the failed state clears the message.
	require.NoError(t, queue.SetStatus(ctx, id, StatusPending, ""))
	record, err = queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, record.ErrorMessage)

	require.NoError(t, queue.SetStatus(ctx, id, StatusFailed, "down again"))
	record, err = queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, record.RetryCount)
}

func TestEditRejectedWhileSyncing(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, salePayload(99.50), "user-1", "shop-1")
	require.NoError(t, err)
	require.NoError(t, queue.SetStatus(ctx, id, StatusSyncing, ""))

	err = queue.Edit(ctx, id, salePayload(120.50))
	var serr *shared.StateError
	require.ErrorAs(t, err, &serr)

	require.NoError(t, queue.SetStatus(ctx, id, StatusPending, ""))
	require.NoError(t, queue.Edit(ctx, id, salePayload(120.50)))
	record, err := queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 120.50, record.Transaction.Entries[0].Amount)
}

func TestRemove(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	id, err := queue.Enqueue(ctx, salePayload(99.50), "user-1", "shop-1")
	require.NoError(t, err)
	require.NoError(t, queue.Remove(ctx, id))

	_, err = queue.Get(ctx, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetFailed(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	first, err := queue.Enqueue(ctx, salePayload(10.50), "user-1", "shop-1")
	require.NoError(t, err)
	second, err := queue.Enqueue(ctx, salePayload(20.50), "user-1", "shop-1")
	require.NoError(t, err)
	require.NoError(t, queue.SetStatus(ctx, first, StatusFailed, "remote unavailable"))
	require.NoError(t, queue.SetStatus(ctx, second, StatusFailed, "remote unavailable"))

	reset, err := queue.ResetFailed(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	pending, err := queue.ListByStatus(ctx, StatusPending, "shop-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, record := range pending {
		assert.Empty(t, record.ErrorMessage)
		assert.Equal(t, 1, record.RetryCount)
	}
}
