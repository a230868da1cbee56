package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/shopbooks/shopbooks/internal/outbox"
	"github.com/shopbooks/shopbooks/internal/shared"
	"github.com/shopbooks/shopbooks/internal/syncer"
)

// systemActor posts on behalf of the scheduler, with admin limits.
var systemActor = shared.Actor{ID: "system", Role: shared.RoleAdmin}

// SyncDrainJob pushes pending offline transactions through the posting
// engine on a schedule, so queues left behind by closed clients still land.
type SyncDrainJob struct {
	Syncer *syncer.Service
	Queue  *outbox.Queue
	Logger *slog.Logger
}

// NewSyncDrainJob wires dependencies for the drain handler.
func NewSyncDrainJob(sync *syncer.Service, queue *outbox.Queue, logger *slog.Logger) *SyncDrainJob {
	return &SyncDrainJob{Syncer: sync, Queue: queue, Logger: logger}
}

// Handle processes sync drain tasks.
func (j *SyncDrainJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Syncer == nil {
		return errors.New("sync drain: handler not configured")
	}
	var payload SyncDrainPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	shops, err := j.shopScope(ctx, payload.ShopID)
	if err != nil {
		j.logger().Error("discover pending shops", slog.Any("error", err))
		return err
	}
	if len(shops) == 0 {
		j.logger().Info("no pending transactions to drain")
		return nil
	}

	var lastErr error
	for _, shopID := range shops {
		logger := j.logger().With(slog.String("shop", shopID))
		summary, err := j.Syncer.SyncAll(ctx, systemActor, shopID)
		if errors.Is(err, syncer.ErrSyncInProgress) {
			// A client-triggered run owns the queue; the next cron tick
			// picks up whatever it leaves behind.
			logger.Info("sync already running, skipping shop")
			continue
		}
		if err != nil {
			lastErr = err
			logger.Error("drain shop queue", slog.Any("error", err))
			continue
		}
		logger.Info("drained shop queue",
			slog.Int("total", summary.Total),
			slog.Int("successful", summary.Successful),
			slog.Int("failed", summary.Failed))
	}
	return lastErr
}

// shopScope resolves which shops to drain: the requested one, or every shop
// holding pending items.
func (j *SyncDrainJob) shopScope(ctx context.Context, shopID string) ([]string, error) {
	if shopID != "" {
		return []string{shopID}, nil
	}
	if j.Queue == nil {
		return nil, errors.New("sync drain: queue not configured")
	}
	pending, err := j.Queue.ListByStatus(ctx, outbox.StatusPending, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	shops := make([]string, 0)
	for _, item := range pending {
		if _, ok := seen[item.ShopID]; ok {
			continue
		}
		seen[item.ShopID] = struct{}{}
		shops = append(shops, item.ShopID)
	}
	sort.Strings(shops)
	return shops, nil
}

func (j *SyncDrainJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSyncDrain))
	}
	return slog.Default().With(slog.String("job", TaskSyncDrain))
}
