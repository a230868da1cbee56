package ledger

import "time"

// EntryInput is one candidate transaction leg.
type EntryInput struct {
	AccountID   string  `json:"accountId" validate:"required"`
	Type        string  `json:"type" validate:"required,oneof=debit credit"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description,omitempty"`
}

// PostingInput carries a candidate transaction into the posting engine. ID is
// normally empty; the sync protocol supplies the queue item id so a retried
// post is idempotent.
type PostingInput struct {
	ID          string          `json:"id,omitempty"`
	ShopID      string          `json:"shopId" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Type        TransactionType `json:"type" validate:"required,oneof=SALE PURCHASE EXPENSE TRANSFER"`
	Entries     []EntryInput    `json:"entries" validate:"required,min=2,dive"`
	CategoryID  string          `json:"categoryId,omitempty"`
	PartyID     string          `json:"partyId,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

// UpdateInput patches an existing transaction. Nil fields keep their current
// value; a non-nil Entries replaces the whole entry set.
type UpdateInput struct {
	Date        *time.Time       `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
	Entries     []EntryInput     `json:"entries,omitempty"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	PartyID     *string          `json:"partyId,omitempty"`
	Reference   *string          `json:"reference,omitempty"`
}
