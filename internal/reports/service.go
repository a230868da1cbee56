package reports

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// LedgerSource is the slice of the ledger the aggregator reads.
type LedgerSource interface {
	TransactionsByShopYear(ctx context.Context, shopID, financialYearID string) ([]ledger.Transaction, error)
	GetBalance(ctx context.Context, accountID, financialYearID string) (*ledger.AccountBalance, error)
}

// AccountSource is the slice of the account directory the aggregator reads.
type AccountSource interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
	ByShop(ctx context.Context, shopID string) ([]accounts.Account, error)
}

// ProfitReport is the stock-integrated profit calculation for one shop/year.
type ProfitReport struct {
	ShopID          string              `json:"shopId"`
	FinancialYearID string              `json:"financialYearId"`
	Sales           float64             `json:"sales"`
	OpeningStock    float64             `json:"openingStock"`
	Purchases       float64             `json:"purchases"`
	ClosingStock    float64             `json:"closingStock"`
	CostOfGoodsSold float64             `json:"costOfGoodsSold"`
	Expenses        float64             `json:"expenses"`
	NetProfit       float64             `json:"netProfit"`
	// Provisional marks reports for a still-open year, where closing stock
	// falls back to the opening stock value.
	Provisional bool                `json:"provisional"`
	Breakdown   []CategoryBreakdown `json:"breakdown"`
	Trend       []MonthProfit       `json:"trend"`
}

// CategoryBreakdown is one account category's signed contribution to profit.
type CategoryBreakdown struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// MonthProfit is one month's bucket of the profit trend.
type MonthProfit struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
}

// StockDiscrepancy reports a break in stock continuity between two adjacent
// financial years.
type StockDiscrepancy struct {
	FromYearID   string  `json:"fromYearId"`
	ToYearID     string  `json:"toYearId"`
	ClosingStock float64 `json:"closingStock"`
	OpeningStock float64 `json:"openingStock"`
	Delta        float64 `json:"delta"`
}

// Service computes balances and profit from first principles, with cached
// results invalidated on every posting.
type Service struct {
	ledger   LedgerSource
	accounts AccountSource
	years    fiscal.Registry
	cache    *Cache
	group    singleflight.Group
}

// NewService constructs the aggregator.
func NewService(ledgerSource LedgerSource, accountSource AccountSource, years fiscal.Registry, cache *Cache) *Service {
	return &Service{ledger: ledgerSource, accounts: accountSource, years: years, cache: cache}
}

// BalanceAsOf folds the account's posted transactions in the financial year
// up to asOf (inclusive, zero value meaning the whole year) onto its opening
// balance. An account with no history yields its opening balance, not an
// error.
func (s *Service) BalanceAsOf(ctx context.Context, accountID, financialYearID string, asOf time.Time) (float64, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	txs, err := s.ledger.TransactionsByShopYear(ctx, account.ShopID, financialYearID)
	if err != nil {
		return 0, err
	}
	balance := account.OpeningBalance
	for i := range txs {
		tx := &txs[i]
		if tx.Status != ledger.StatusPosted {
			continue
		}
		if !asOf.IsZero() && tx.Date.After(asOf) {
			continue
		}
		for _, entry := range tx.Entries {
			if entry.AccountID != accountID {
				continue
			}
			if entry.Type == accounts.SideDebit {
				balance += entry.Amount
			} else {
				balance -= entry.Amount
			}
		}
	}
	return balance, nil
}

// ProfitFor computes Sales - (OpeningStock + Purchases - ClosingStock) -
// Expenses for the shop/year, with a per-category breakdown and a monthly
// trend. Concurrent identical requests share one computation.
func (s *Service) ProfitFor(ctx context.Context, shopID, financialYearID string) (*ProfitReport, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "profit", shopID, financialYearID)
	if err != nil {
		return nil, err
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		var report ProfitReport
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			return s.buildProfit(ctx, shopID, financialYearID)
		})
		return &report, err
	})
	if err != nil {
		return nil, err
	}
	return value.(*ProfitReport), nil
}

func (s *Service) buildProfit(ctx context.Context, shopID, financialYearID string) (*ProfitReport, error) {
	year, err := s.years.YearByID(ctx, financialYearID)
	if err != nil {
		return nil, err
	}
	if year.ShopID != shopID {
		return nil, shared.ErrNotFound
	}
	shopAccounts, err := s.accounts.ByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	report := &ProfitReport{ShopID: shopID, FinancialYearID: financialYearID}
	byCategory := make(map[string]float64)
	var openingFromAccounts, closingFromAccounts float64
	for i := range shopAccounts {
		account := &shopAccounts[i]
		balance, err := s.materializedBalance(ctx, account.ID, financialYearID)
		if err != nil {
			return nil, err
		}
		switch account.Type {
		case accounts.TypeSales:
			// Credit-natured: postings accumulate negative, revenue is the inverse.
			report.Sales += -balance
			addCategory(byCategory, account.Category, -balance)
		case accounts.TypePurchases:
			report.Purchases += balance
			addCategory(byCategory, account.Category, -balance)
		case accounts.TypeExpenses:
			report.Expenses += balance
			addCategory(byCategory, account.Category, -balance)
		case accounts.TypeOpeningStock:
			openingFromAccounts += balance
		case accounts.TypeEndingStock:
			closingFromAccounts += balance
		}
	}

	report.OpeningStock = year.OpeningStockValue
	if report.OpeningStock == 0 {
		report.OpeningStock = openingFromAccounts
	}
	switch {
	case !year.IsOpen():
		report.ClosingStock = year.ClosingStockValue
		if report.ClosingStock == 0 {
			report.ClosingStock = closingFromAccounts
		}
	case closingFromAccounts != 0:
		report.ClosingStock = closingFromAccounts
	default:
		// Open year with no ending stock recorded yet: fall back to the
		// opening value and flag the report as provisional.
		report.ClosingStock = report.OpeningStock
		report.Provisional = true
	}

	report.CostOfGoodsSold = report.OpeningStock + report.Purchases - report.ClosingStock
	report.NetProfit = report.Sales - report.CostOfGoodsSold - report.Expenses

	for category, amount := range byCategory {
		report.Breakdown = append(report.Breakdown, CategoryBreakdown{Category: category, Amount: amount})
	}
	sort.Slice(report.Breakdown, func(i, j int) bool { return report.Breakdown[i].Category < report.Breakdown[j].Category })

	trend, err := s.buildTrend(ctx, shopID, financialYearID, shopAccounts)
	if err != nil {
		return nil, err
	}
	report.Trend = trend
	return report, nil
}

func (s *Service) buildTrend(ctx context.Context, shopID, financialYearID string, shopAccounts []accounts.Account) ([]MonthProfit, error) {
	types := make(map[string]accounts.Type, len(shopAccounts))
	for i := range shopAccounts {
		types[shopAccounts[i].ID] = shopAccounts[i].Type
	}
	txs, err := s.ledger.TransactionsByShopYear(ctx, shopID, financialYearID)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]*MonthProfit)
	var months []string
	for i := range txs {
		tx := &txs[i]
		if tx.Status != ledger.StatusPosted {
			continue
		}
		month := tx.Date.Format("2006-01")
		bucket := buckets[month]
		if bucket == nil {
			bucket = &MonthProfit{Month: month}
			buckets[month] = bucket
			months = append(months, month)
		}
		for _, entry := range tx.Entries {
			switch types[entry.AccountID] {
			case accounts.TypeSales:
				if entry.Type == accounts.SideCredit {
					bucket.Revenue += entry.Amount
				} else {
					bucket.Revenue -= entry.Amount
				}
			case accounts.TypePurchases, accounts.TypeExpenses:
				if entry.Type == accounts.SideDebit {
					bucket.Expenses += entry.Amount
				} else {
					bucket.Expenses -= entry.Amount
				}
			}
		}
	}
	sort.Strings(months)
	out := make([]MonthProfit, 0, len(months))
	for _, month := range months {
		bucket := buckets[month]
		bucket.Profit = bucket.Revenue - bucket.Expenses
		out = append(out, *bucket)
	}
	return out, nil
}

// materializedBalance reads the cached AccountBalance, treating a missing
// document as zero.
func (s *Service) materializedBalance(ctx context.Context, accountID, financialYearID string) (float64, error) {
	balance, err := s.ledger.GetBalance(ctx, accountID, financialYearID)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Balance, nil
}

// ValidateStockContinuity orders the shop's financial years by start date and
// checks that each year's closing stock equals the next year's opening stock
// within tolerance. Mismatches are reported, not fatal.
func (s *Service) ValidateStockContinuity(ctx context.Context, shopID string) ([]StockDiscrepancy, error) {
	years, err := s.years.YearsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	var discrepancies []StockDiscrepancy
	for i := 0; i+1 < len(years); i++ {
		prev, next := years[i], years[i+1]
		delta := next.OpeningStockValue - prev.ClosingStockValue
		if math.Abs(delta) > ledger.Tolerance {
			discrepancies = append(discrepancies, StockDiscrepancy{
				FromYearID:   prev.ID,
				ToYearID:     next.ID,
				ClosingStock: prev.ClosingStockValue,
				OpeningStock: next.OpeningStockValue,
				Delta:        delta,
			})
		}
	}
	return discrepancies, nil
}

func addCategory(byCategory map[string]float64, category string, amount float64) {
	if category == "" {
		category = "uncategorised"
	}
	byCategory[category] += amount
}
