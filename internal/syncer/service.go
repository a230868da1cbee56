package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/outbox"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// ErrSyncInProgress rejects a sync request while another run is active.
// Concurrent calls are rejected, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// State enumerates the sync run lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Poster submits a queued payload through the posting engine. The ledger
// service satisfies this.
type Poster interface {
	Post(ctx context.Context, in ledger.PostingInput, actor shared.Actor) (*ledger.Transaction, error)
}

// Progress is reported after every processed item.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ItemError records one failed queue item.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Summary is the terminal event of a sync run.
type Summary struct {
	State      State       `json:"state"`
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// DefaultBatchSize bounds how many queue items one batch submits concurrently.
const DefaultBatchSize = 5

// DefaultBatchDelay separates batches to bound remote write pressure.
const DefaultBatchDelay = 250 * time.Millisecond

// Service drains the offline queue against the posting engine in bounded
// concurrent batches, idempotently per item.
type Service struct {
	queue      *outbox.Queue
	poster     Poster
	lock       *shared.Lock
	logger     *slog.Logger
	batchSize  int
	batchDelay time.Duration
	onProgress func(Progress)

	running atomic.Bool
	mu      sync.Mutex
	last    *Summary
}

// Option customises the service.
type Option func(*Service)

// WithBatchSize overrides the batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay overrides the inter-batch delay.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// WithProgress registers a per-item progress callback.
func WithProgress(fn func(Progress)) Option {
	return func(s *Service) { s.onProgress = fn }
}

// NewService constructs the sync protocol. lock may be nil when no redis is
// available; the in-process single-flight guard still applies.
func NewService(queue *outbox.Queue, poster Poster, lock *shared.Lock, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		queue:      queue,
		poster:     poster,
		lock:       lock,
		logger:     logger,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current state and the last terminal summary, if any.
func (s *Service) Status() (State, *Summary) {
	if s.running.Load() {
		return StateSyncing, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return StateIdle, nil
	}
	return s.last.State, s.last
}

// SyncAll drains the shop's pending queue. A run already in progress is
// rejected with ErrSyncInProgress; an empty queue completes immediately.
func (s *Service) SyncAll(ctx context.Context, actor shared.Actor, shopID string) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	release, err := s.lock.Acquire(ctx, shared.SyncLockKey(shopID))
	if errors.Is(err, shared.ErrLockHeld) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	defer release()

	items, err := s.queue.ListByStatus(ctx, outbox.StatusPending, shopID)
	if err != nil {
		return nil, err
	}
	summary := &Summary{State: StateCompleted, Total: len(items)}
	if len(items) == 0 {
		s.finish(summary)
		return summary, nil
	}

	var processed atomic.Int64
	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		batch := items[start:end]

		group, groupCtx := errgroup.WithContext(ctx)
		for i := range batch {
			item := batch[i]
			group.Go(func() error {
				itemErr := s.processItem(groupCtx, item, actor)
				s.mu.Lock()
				if itemErr != nil {
					summary.Failed++
					summary.Errors = append(summary.Errors, ItemError{ID: item.ID, Error: itemErr.Error()})
				} else {
					summary.Successful++
				}
				s.mu.Unlock()
				current := int(processed.Add(1))
				s.report(Progress{
					Current: current,
					Total:   len(items),
					Message: fmt.Sprintf("synced %d of %d transactions", current, len(items)),
				})
				// Item failures are recorded, never propagated, so one bad
				// item cannot abort its batch siblings.
				return nil
			})
		}
		_ = group.Wait()

		if end < len(items) && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}

	if summary.Failed > 0 {
		summary.State = StateError
	}
	s.finish(summary)
	return summary, nil
}

// processItem submits one queue item: mark syncing, post with the item id as
// the transaction id (so a crashed-then-retried post is a no-op upsert), and
// remove the record only after the remote write is confirmed.
func (s *Service) processItem(ctx context.Context, item outbox.PendingTransactionRecord, actor shared.Actor) error {
	if err := s.queue.SetStatus(ctx, item.ID, outbox.StatusSyncing, ""); err != nil {
		return err
	}
	payload := item.Transaction
	payload.ID = item.ID
	if payload.ShopID == "" {
		payload.ShopID = item.ShopID
	}
	if _, err := s.poster.Post(ctx, payload, actor); err != nil {
		if setErr := s.queue.SetStatus(ctx, item.ID, outbox.StatusFailed, err.Error()); setErr != nil {
			s.warn("mark item failed", item.ID, setErr)
		}
		return err
	}
	if err := s.queue.Remove(ctx, item.ID); err != nil {
		// The remote write landed; the leftover record will resolve as a
		// no-op on the next run.
		s.warn("remove synced item", item.ID, err)
	}
	return nil
}

// RetryFailed resets every failed item to pending and runs a full sync.
func (s *Service) RetryFailed(ctx context.Context, actor shared.Actor, shopID string) (*Summary, error) {
	if _, err := s.queue.ResetFailed(ctx, shopID); err != nil {
		return nil, err
	}
	return s.SyncAll(ctx, actor, shopID)
}

func (s *Service) finish(summary *Summary) {
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()
	s.report(Progress{
		Current: summary.Total,
		Total:   summary.Total,
		Message: fmt.Sprintf("sync %s: %d succeeded, %d failed", summary.State, summary.Successful, summary.Failed),
	})
}

func (s *Service) report(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *Service) warn(msg, id string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("item", id), slog.Any("error", err))
	}
}
