package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopbooks/shopbooks/internal/docstore"
)

// Collections used by the ledger in the remote store.
const (
	TransactionsCollection = "transactions"
	BalancesCollection     = "account_balances"
)

// Repository encapsulates store operations for transactions and balances.
type Repository interface {
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	TransactionsByShopYear(ctx context.Context, shopID, financialYearID string) ([]Transaction, error)
	GetBalance(ctx context.Context, accountID, financialYearID string) (*AccountBalance, error)
	BalancesByAccount(ctx context.Context, accountID string) ([]AccountBalance, error)
	HasActivity(ctx context.Context, accountID string) (bool, error)

	// ApplyPosting atomically writes the transaction document and adjusts
	// every affected balance with a field-level atomic add.
	ApplyPosting(ctx context.Context, tx *Transaction, deltas []BalanceDelta, at time.Time) error
	// ApplyReversal atomically marks the transaction reversed and applies the
	// inverse balance deltas.
	ApplyReversal(ctx context.Context, tx *Transaction, deltas []BalanceDelta, at time.Time) error
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a Repository over the document store.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	if err := r.store.Get(ctx, TransactionsCollection, id, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *repository) TransactionsByShopYear(ctx context.Context, shopID, financialYearID string) ([]Transaction, error) {
	conds := []docstore.Where{docstore.Eq("shopId", shopID)}
	if financialYearID != "" {
		conds = append(conds, docstore.Eq("financialYearId", financialYearID))
	}
	raws, err := r.store.Query(ctx, TransactionsCollection, conds...)
	if err != nil {
		return nil, err
	}
	txs, err := docstore.DecodeAll[Transaction](raws)
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs, nil
}

func (r *repository) GetBalance(ctx context.Context, accountID, financialYearID string) (*AccountBalance, error) {
	var balance AccountBalance
	if err := r.store.Get(ctx, BalancesCollection, BalanceKey(accountID, financialYearID), &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) BalancesByAccount(ctx context.Context, accountID string) ([]AccountBalance, error) {
	raws, err := r.store.Query(ctx, BalancesCollection, docstore.Eq("accountId", accountID))
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[AccountBalance](raws)
}

// HasActivity reports whether any balance document exists for the account. A
// balance document is only ever created by a posting, so its presence marks
// transaction history even after reversals zero it out.
func (r *repository) HasActivity(ctx context.Context, accountID string) (bool, error) {
	balances, err := r.BalancesByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return len(balances) > 0, nil
}

func (r *repository) ApplyPosting(ctx context.Context, tx *Transaction, deltas []BalanceDelta, at time.Time) error {
	batch := r.store.Batch()
	batch.Set(TransactionsCollection, tx.ID, tx)
	applyDeltas(batch, deltas, at)
	return batch.Commit(ctx)
}

func (r *repository) ApplyReversal(ctx context.Context, tx *Transaction, deltas []BalanceDelta, at time.Time) error {
	batch := r.store.Batch()
	batch.Set(TransactionsCollection, tx.ID, tx)
	applyDeltas(batch, deltas, at)
	return batch.Commit(ctx)
}

func applyDeltas(batch docstore.Batch, deltas []BalanceDelta, at time.Time) {
	for _, delta := range deltas {
		key := BalanceKey(delta.AccountID, delta.FinancialYearID)
		batch.Update(BalancesCollection, key, map[string]any{
			"accountId":       delta.AccountID,
			"financialYearId": delta.FinancialYearID,
			"lastUpdated":     at,
		})
		batch.Increment(BalancesCollection, key, "balance", delta.Delta)
	}
}
