package outbox

import (
	"time"

	"github.com/shopbooks/shopbooks/internal/ledger"
)

// Status enumerates queue item states.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// PendingTransactionRecord is one queued transaction awaiting submission to
// the remote store. The queue owns it exclusively until a successful drain
// deletes it.
type PendingTransactionRecord struct {
	ID           string              `json:"id"`
	Transaction  ledger.PostingInput `json:"transaction"`
	Timestamp    time.Time           `json:"timestamp"`
	UserID       string              `json:"userId"`
	ShopID       string              `json:"shopId"`
	RetryCount   int                 `json:"retryCount"`
	Status       Status              `json:"status"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
}
