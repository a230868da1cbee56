package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/docstore"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/ledger"
)

// BalanceDrift is one divergence between the posted transaction set and the
// materialized balance record.
type BalanceDrift struct {
	ShopID          string  `json:"shopId"`
	AccountID       string  `json:"accountId"`
	FinancialYearID string  `json:"financialYearId"`
	Expected        float64 `json:"expected"`
	Materialized    float64 `json:"materialized"`
	Delta           float64 `json:"delta"`
}

// LedgerIntegrityJob folds posted transactions into expected per-account
// totals and compares them against the materialized balance documents.
// Transactions remain the source of truth; drift means a balance write was
// lost or duplicated and needs operator attention.
type LedgerIntegrityJob struct {
	Store  docstore.Store
	Ledger ledger.Repository
	Years  fiscal.Registry
	Logger *slog.Logger
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(store docstore.Store, repo ledger.Repository, years fiscal.Registry, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Store: store, Ledger: repo, Years: years, Logger: logger}
}

// Handle processes ledger integrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil || j.Ledger == nil || j.Years == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	shops, err := j.shopScope(ctx, payload.ShopID)
	if err != nil {
		j.logger().Error("discover shops", slog.Any("error", err))
		return err
	}

	scanned := 0
	drifted := 0
	for _, shopID := range shops {
		drifts, err := j.Check(ctx, shopID)
		if err != nil {
			j.logger().Error("scan shop", slog.String("shop", shopID), slog.Any("error", err))
			return err
		}
		scanned++
		drifted += len(drifts)
		for _, d := range drifts {
			j.logger().Warn("balance drift detected",
				slog.String("shop", d.ShopID),
				slog.String("account", d.AccountID),
				slog.String("financial_year", d.FinancialYearID),
				slog.Float64("expected", d.Expected),
				slog.Float64("materialized", d.Materialized),
				slog.Float64("delta", d.Delta))
		}
	}
	j.logger().Info("integrity scan complete", slog.Int("shops", scanned), slog.Int("drifts", drifted))
	return nil
}

// Check recomputes every balance of the shop from its posted transactions
// and returns the divergences beyond the posting tolerance.
func (j *LedgerIntegrityJob) Check(ctx context.Context, shopID string) ([]BalanceDrift, error) {
	years, err := j.Years.YearsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	drifts := make([]BalanceDrift, 0)
	for _, year := range years {
		expected, err := j.expectedBalances(ctx, shopID, year.ID)
		if err != nil {
			return nil, err
		}
		materialized, err := j.materializedBalances(ctx, year.ID)
		if err != nil {
			return nil, err
		}

		ids := make(map[string]struct{}, len(expected)+len(materialized))
		for id := range expected {
			ids[id] = struct{}{}
		}
		for id := range materialized {
			ids[id] = struct{}{}
		}
		for accountID := range ids {
			want := expected[accountID]
			have := materialized[accountID]
			if math.Abs(want-have) <= ledger.Tolerance {
				continue
			}
			drifts = append(drifts, BalanceDrift{
				ShopID:          shopID,
				AccountID:       accountID,
				FinancialYearID: year.ID,
				Expected:        want,
				Materialized:    have,
				Delta:           have - want,
			})
		}
	}
	sort.Slice(drifts, func(i, k int) bool {
		if drifts[i].FinancialYearID != drifts[k].FinancialYearID {
			return drifts[i].FinancialYearID < drifts[k].FinancialYearID
		}
		return drifts[i].AccountID < drifts[k].AccountID
	})
	return drifts, nil
}

// expectedBalances folds the shop's posted transactions for one year into
// per-account totals, debits positive and credits negative. Reversed
// transactions are skipped because their reversal already netted the
// materialized side to zero.
func (j *LedgerIntegrityJob) expectedBalances(ctx context.Context, shopID, yearID string) (map[string]float64, error) {
	txs, err := j.Ledger.TransactionsByShopYear(ctx, shopID, yearID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64)
	for _, tx := range txs {
		if tx.Status != ledger.StatusPosted {
			continue
		}
		for _, entry := range tx.Entries {
			amount := entry.Amount
			if entry.Type == accounts.SideCredit {
				amount = -amount
			}
			totals[entry.AccountID] += amount
		}
	}
	return totals, nil
}

func (j *LedgerIntegrityJob) materializedBalances(ctx context.Context, yearID string) (map[string]float64, error) {
	raws, err := j.Store.Query(ctx, ledger.BalancesCollection, docstore.Eq("financialYearId", yearID))
	if err != nil {
		return nil, err
	}
	balances, err := docstore.DecodeAll[ledger.AccountBalance](raws)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(balances))
	for _, b := range balances {
		out[b.AccountID] = b.Balance
	}
	return out, nil
}

// shopScope resolves which shops to scan: the requested one, or every shop
// with a financial year on record.
func (j *LedgerIntegrityJob) shopScope(ctx context.Context, shopID string) ([]string, error) {
	if shopID != "" {
		return []string{shopID}, nil
	}
	raws, err := j.Store.Query(ctx, fiscal.Collection)
	if err != nil {
		return nil, err
	}
	years, err := docstore.DecodeAll[fiscal.FinancialYear](raws)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	shops := make([]string, 0)
	for _, year := range years {
		if _, ok := seen[year.ShopID]; ok {
			continue
		}
		seen[year.ShopID] = struct{}{}
		shops = append(shops, year.ShopID)
	}
	sort.Strings(shops)
	return shops, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}
