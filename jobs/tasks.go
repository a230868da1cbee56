package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncDrain drains pending offline transactions for one or all shops.
	TaskSyncDrain = "sync:drain"
	// TaskLedgerIntegrity recomputes balances from posted transactions and
	// reports drift against the materialized records.
	TaskLedgerIntegrity = "ledger:integrity"
)

// SyncDrainPayload scopes a drain run. An empty ShopID drains every shop
// that has pending items.
type SyncDrainPayload struct {
	ShopID string `json:"shopId"`
}

// LedgerIntegrityPayload scopes an integrity scan. An empty ShopID scans
// every shop with at least one financial year.
type LedgerIntegrityPayload struct {
	ShopID string `json:"shopId"`
}

// NewSyncDrainTask constructs an Asynq task.
func NewSyncDrainTask(shopID string) (*asynq.Task, error) {
	data, err := json.Marshal(SyncDrainPayload{ShopID: shopID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncDrain, data), nil
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(shopID string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{ShopID: shopID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
