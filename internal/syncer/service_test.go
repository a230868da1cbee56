package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/outbox"
	"github.com/shopbooks/shopbooks/internal/shared"
)

var syncActor = shared.Actor{ID: "user-1", Role: shared.RoleUser, ShopID: "shop-1"}

type stubPoster struct {
	mu       sync.Mutex
	posted   []ledger.PostingInput
	failOnce map[string]bool // keyed by payload description
	block    chan struct{}
	started  chan struct{}
}

func (p *stubPoster) Post(ctx context.Context, in ledger.PostingInput, actor shared.Actor) (*ledger.Transaction, error) {
	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOnce[in.Description] {
		delete(p.failOnce, in.Description)
		return nil, errors.New("remote unavailable")
	}
	p.posted = append(p.posted, in)
	return &ledger.Transaction{ID: in.ID, Status: ledger.StatusPosted}, nil
}

func (p *stubPoster) postedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.posted))
	for _, in := range p.posted {
		ids = append(ids, in.ID)
	}
	return ids
}

func newSyncFixture(t *testing.T, poster *stubPoster, opts ...Option) (*Service, *outbox.Queue) {
	t.Helper()
	store, err := outbox.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	queue := outbox.NewQueue(store)
	opts = append([]Option{WithBatchDelay(0)}, opts...)
	svc := NewService(queue, poster, nil, nil, opts...)
	return svc, queue
}

func enqueueSales(t *testing.T, queue *outbox.Queue, descriptions ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(descriptions))
	for _, desc := range descriptions {
		id, err := queue.Enqueue(context.Background(), ledger.PostingInput{
			ShopID:      "shop-1",
			Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			Description: desc,
			Type:        ledger.TypeSale,
			Entries: []ledger.EntryInput{
				{AccountID: "cash", Type: "debit", Amount: 45.50},
				{AccountID: "sales", Type: "credit", Amount: 45.50},
			},
		}, "user-1", "shop-1")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestSyncAllEmptyQueue(t *testing.T) {
	poster := &stubPoster{}
	svc, _ := newSyncFixture(t, poster)

	summary, err := svc.SyncAll(context.Background(), syncActor, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Zero(t, summary.Total)
	assert.Empty(t, poster.postedIDs())
}

func TestSyncAllDrainsQueue(t *testing.T) {
	poster := &stubPoster{}
	svc, queue := newSyncFixture(t, poster)
	queued := enqueueSales(t, queue, "s1", "s2", "s3", "s4", "s5", "s6", "s7")
	ctx := context.Background()

	summary, err := svc.SyncAll(ctx, syncActor, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 7, summary.Successful)
	assert.Zero(t, summary.Failed)

	// Every post carried its queue item id, for idempotent retries.
	assert.ElementsMatch(t, queued, poster.postedIDs())

	remaining, err := queue.List(ctx, "shop-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSyncAllRecordsFailures(t *testing.T) {
	poster := &stubPoster{failOnce: map[string]bool{"s2": true}}
	svc, queue := newSyncFixture(t, poster)
	enqueueSales(t, queue, "s1", "s2", "s3")
	ctx := context.Background()

	summary, err := svc.SyncAll(ctx, syncActor, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, StateError, summary.State)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "remote unavailable", summary.Errors[0].Error)

	failed, err := queue.ListByStatus(ctx, outbox.StatusFailed, "shop-1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "s2", failed[0].Transaction.Description)
	assert.Equal(t, 1, failed[0].RetryCount)
	assert.Equal(t, "remote unavailable", failed[0].ErrorMessage)
}

func TestRetryFailedDrainsFailedItems(t *testing.T) {
	poster := &stubPoster{failOnce: map[string]bool{"s1": true}}
	svc, queue := newSyncFixture(t, poster)
	enqueueSales(t, queue, "s1")
	ctx := context.Background()

	summary, err := svc.SyncAll(ctx, syncActor, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	summary, err = svc.RetryFailed(ctx, syncActor, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 1, summary.Successful)

	remaining, err := queue.List(ctx, "shop-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSyncAllReportsProgress(t *testing.T) {
	poster := &stubPoster{}
	var mu sync.Mutex
	var progress []Progress
	svc, queue := newSyncFixture(t, poster, WithProgress(func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}))
	enqueueSales(t, queue, "s1", "s2", "s3")

	_, err := svc.SyncAll(context.Background(), syncActor, "shop-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// One event per item plus the terminal summary.
	require.Len(t, progress, 4)
	last := progress[len(progress)-1]
	assert.Equal(t, 3, last.Total)
	assert.Contains(t, last.Message, "3 succeeded")
}

func TestConcurrentSyncRejected(t *testing.T) {
	poster := &stubPoster{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc, queue := newSyncFixture(t, poster)
	enqueueSales(t, queue, "s1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncAll(ctx, syncActor, "shop-1")
		done <- err
	}()

	<-poster.started
	_, err := svc.SyncAll(ctx, syncActor, "shop-1")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(poster.block)
	require.NoError(t, <-done)
}

func TestStatusLifecycle(t *testing.T) {
	poster := &stubPoster{}
	svc, queue := newSyncFixture(t, poster)

	state, last := svc.Status()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, last)

	enqueueSales(t, queue, "s1")
	_, err := svc.SyncAll(context.Background(), syncActor, "shop-1")
	require.NoError(t, err)

	state, last = svc.Status()
	assert.Equal(t, StateCompleted, state)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Successful)
}
