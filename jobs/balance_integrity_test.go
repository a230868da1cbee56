package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/docstore"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/ledger"
)

func seedIntegrityStore(t *testing.T) *docstore.Memory {
	t.Helper()
	store := docstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, fiscal.Collection, "fy-2025", fiscal.FinancialYear{
		ID:        "fy-2025",
		ShopID:    "shop-1",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    fiscal.YearStatusOpen,
	}))

	require.NoError(t, store.Put(ctx, ledger.TransactionsCollection, "t1", ledger.Transaction{
		ID: "t1", ShopID: "shop-1", FinancialYearID: "fy-2025",
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeSale, Status: ledger.StatusPosted,
		Entries: []ledger.Entry{
			{AccountID: "cash", Type: accounts.SideDebit, Amount: 300},
			{AccountID: "sales", Type: accounts.SideCredit, Amount: 300},
		},
	}))
	require.NoError(t, store.Put(ctx, ledger.TransactionsCollection, "t2", ledger.Transaction{
		ID: "t2", ShopID: "shop-1", FinancialYearID: "fy-2025",
		Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Type: ledger.TypeSale, Status: ledger.StatusReversed,
		Entries: []ledger.Entry{
			{AccountID: "cash", Type: accounts.SideDebit, Amount: 999},
			{AccountID: "sales", Type: accounts.SideCredit, Amount: 999},
		},
	}))

	putBalance := func(accountID string, amount float64) {
		key := ledger.BalanceKey(accountID, "fy-2025")
		require.NoError(t, store.Put(ctx, ledger.BalancesCollection, key, ledger.AccountBalance{
			AccountID:       accountID,
			FinancialYearID: "fy-2025",
			Balance:         amount,
		}))
	}
	putBalance("cash", 300)
	putBalance("sales", -300)
	return store
}

func newIntegrityJob(store *docstore.Memory) *LedgerIntegrityJob {
	return NewLedgerIntegrityJob(store, ledger.NewRepository(store), fiscal.NewRegistry(store), nil)
}

func TestIntegrityCheckClean(t *testing.T) {
	store := seedIntegrityStore(t)
	job := newIntegrityJob(store)

	drifts, err := job.Check(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestIntegrityCheckDetectsDrift(t *testing.T) {
	store := seedIntegrityStore(t)
	ctx := context.Background()

	// Simulate a lost balance write: the materialized record disagrees with
	// the posted transaction fold.
	key := ledger.BalanceKey("cash", "fy-2025")
	require.NoError(t, store.Put(ctx, ledger.BalancesCollection, key, ledger.AccountBalance{
		AccountID:       "cash",
		FinancialYearID: "fy-2025",
		Balance:         250,
	}))

	job := newIntegrityJob(store)
	drifts, err := job.Check(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	d := drifts[0]
	assert.Equal(t, "cash", d.AccountID)
	assert.Equal(t, 300.0, d.Expected)
	assert.Equal(t, 250.0, d.Materialized)
	assert.Equal(t, -50.0, d.Delta)
}

func TestIntegrityCheckFlagsOrphanBalance(t *testing.T) {
	store := seedIntegrityStore(t)
	ctx := context.Background()

	key := ledger.BalanceKey("ghost", "fy-2025")
	require.NoError(t, store.Put(ctx, ledger.BalancesCollection, key, ledger.AccountBalance{
		AccountID:       "ghost",
		FinancialYearID: "fy-2025",
		Balance:         75,
	}))

	job := newIntegrityJob(store)
	drifts, err := job.Check(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "ghost", drifts[0].AccountID)
	assert.Zero(t, drifts[0].Expected)
}

func TestIntegrityShopScopeDiscovery(t *testing.T) {
	store := seedIntegrityStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, fiscal.Collection, "fy-other", fiscal.FinancialYear{
		ID:     "fy-other",
		ShopID: "shop-2",
		Status: fiscal.YearStatusOpen,
	}))

	job := newIntegrityJob(store)
	shops, err := job.shopScope(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop-1", "shop-2"}, shops)

	shops, err = job.shopScope(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop-1"}, shops)
}
