package ledger

import (
	"fmt"
	"time"

	"github.com/shopbooks/shopbooks/internal/accounts"
)

// TransactionType enumerates the economic event kinds.
type TransactionType string

const (
	TypeSale     TransactionType = "SALE"
	TypePurchase TransactionType = "PURCHASE"
	TypeExpense  TransactionType = "EXPENSE"
	TypeTransfer TransactionType = "TRANSFER"
)

// Status enumerates transaction lifecycle values.
type Status string

const (
	StatusPosted   Status = "posted"
	StatusDraft    Status = "draft"
	StatusReversed Status = "reversed"
)

// Tolerance is the permitted absolute difference between total debits and
// credits of a balanced transaction.
const Tolerance = 0.01

// Entry is one leg of a transaction, owned exclusively by its parent.
type Entry struct {
	AccountID   string        `json:"accountId"`
	Type        accounts.Side `json:"type"`
	Amount      float64       `json:"amount"`
	Description string        `json:"description,omitempty"`
}

// Transaction is an atomic economic event, immutable once posted except via
// the edit-with-reversal path.
type Transaction struct {
	ID              string          `json:"id"`
	ShopID          string          `json:"shopId"`
	FinancialYearID string          `json:"financialYearId"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"`
	Type            TransactionType `json:"type"`
	Status          Status          `json:"status"`
	Entries         []Entry         `json:"entries"`
	CategoryID      string          `json:"categoryId,omitempty"`
	PartyID         string          `json:"partyId,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	ReversalReason  string          `json:"reversalReason,omitempty"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Totals returns the summed debit and credit amounts.
func (t *Transaction) Totals() (debit, credit float64) {
	for _, entry := range t.Entries {
		switch entry.Type {
		case accounts.SideDebit:
			debit += entry.Amount
		case accounts.SideCredit:
			credit += entry.Amount
		}
	}
	return debit, credit
}

// AccountBalance is the materialized per-(account, financial year) running
// total. The posted transaction set remains the source of truth.
type AccountBalance struct {
	AccountID       string    `json:"accountId"`
	FinancialYearID string    `json:"financialYearId"`
	Balance         float64   `json:"balance"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// BalanceKey builds the document id for an AccountBalance.
func BalanceKey(accountID, financialYearID string) string {
	return fmt.Sprintf("%s_%s", accountID, financialYearID)
}

// BalanceDelta is one signed balance adjustment produced by a posting or
// reversal.
type BalanceDelta struct {
	AccountID       string
	FinancialYearID string
	Delta           float64
}

func sideFrom(s string) accounts.Side {
	switch s {
	case "debit":
		return accounts.SideDebit
	case "credit":
		return accounts.SideCredit
	default:
		return accounts.Side(s)
	}
}

// deltasFor converts entries into signed balance adjustments: +amount for a
// debit, -amount for a credit. invert flips the sign, for reversals.
func deltasFor(entries []Entry, financialYearID string, invert bool) []BalanceDelta {
	out := make([]BalanceDelta, 0, len(entries))
	for _, entry := range entries {
		delta := entry.Amount
		if entry.Type == accounts.SideCredit {
			delta = -delta
		}
		if invert {
			delta = -delta
		}
		out = append(out, BalanceDelta{AccountID: entry.AccountID, FinancialYearID: financialYearID, Delta: delta})
	}
	return out
}
