package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// Limits configures the amount and date rules applied by the validator.
type Limits struct {
	// UserAmountCap rejects transactions above this total for non-admins.
	UserAmountCap float64
	// AbsoluteCeiling rejects any transaction above this total.
	AbsoluteCeiling float64
	// LargeAmountWarn raises a warning above this total.
	LargeAmountWarn float64
	// LargeStockWarn raises a warning for stock entries above this value.
	LargeStockWarn float64
	// MaxPastAge rejects dates older than this.
	MaxPastAge time.Duration
	// StockWindow is how close to the year boundary stock entries are expected.
	StockWindow time.Duration
	// YearEndWarning flags dates inside the final stretch of the year.
	YearEndWarning time.Duration
}

// DefaultLimits returns the standard rule configuration.
func DefaultLimits() Limits {
	return Limits{
		UserAmountCap:   100_000,
		AbsoluteCeiling: 10_000_000,
		LargeAmountWarn: 500_000,
		LargeStockWarn:  1_000_000,
		MaxPastAge:      2 * 365 * 24 * time.Hour,
		StockWindow:     30 * 24 * time.Hour,
		YearEndWarning:  30 * 24 * time.Hour,
	}
}

// AccountSource is the slice of the account directory the validator reads.
type AccountSource interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
	ChildrenOf(ctx context.Context, id string) ([]accounts.Account, error)
}

// Result aggregates the outcome of every check. The candidate is valid iff
// no check produced an error; warnings are advisory only.
type Result struct {
	Errors   []string
	Warnings []string
	// Year is the open financial year resolved during validation, when one
	// exists for the shop.
	Year *fiscal.FinancialYear
}

// Valid reports whether no check produced an error.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AsError converts an invalid result into a ValidationError, or nil.
func (r *Result) AsError() error {
	if r.Valid() {
		return nil
	}
	return &shared.ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}

// Validator runs the composed rule set against a candidate transaction. Every
// check is evaluated; none short-circuits the others, so the caller receives
// the complete list of violations in one pass.
type Validator struct {
	accounts AccountSource
	years    fiscal.Registry
	limits   Limits
	now      func() time.Time
}

// NewValidator constructs a Validator.
func NewValidator(source AccountSource, years fiscal.Registry, limits Limits) *Validator {
	return &Validator{accounts: source, years: years, limits: limits, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (v *Validator) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Validate evaluates all checks. The returned error is reserved for store
// failures; rule violations land in the Result.
func (v *Validator) Validate(ctx context.Context, tx *Transaction, actor shared.Actor) (*Result, error) {
	result := &Result{}
	resolved, err := v.checkEntries(ctx, tx, result)
	if err != nil {
		return nil, err
	}
	v.checkBalance(tx, result)
	if err := v.checkFinancialYear(ctx, tx, result); err != nil {
		return nil, err
	}
	v.checkStockLifecycle(tx, resolved, result)
	v.checkLimits(tx, actor, result)
	v.checkDates(tx, result)
	return result, nil
}

// checkBalance enforces the double-entry invariant.
func (v *Validator) checkBalance(tx *Transaction, result *Result) {
	if len(tx.Entries) < 2 {
		result.fail("transaction needs at least two entries, got %d", len(tx.Entries))
	}
	for i, entry := range tx.Entries {
		if entry.Amount <= 0 {
			result.fail("entry %d amount must be positive, got %.2f", i, entry.Amount)
		}
		if entry.Type != accounts.SideDebit && entry.Type != accounts.SideCredit {
			result.fail("entry %d has unknown side %q", i, entry.Type)
		}
	}
	debit, credit := tx.Totals()
	if diff := math.Abs(debit - credit); diff > Tolerance {
		result.fail("debits and credits differ by %.2f", diff)
	}
}

// checkEntries resolves every referenced account and enforces the usage
// rules: existence, active flag, shop scope, the leaf-only rule for expense
// parents, and type restrictions per transaction kind.
func (v *Validator) checkEntries(ctx context.Context, tx *Transaction, result *Result) (map[string]*accounts.Account, error) {
	resolved := make(map[string]*accounts.Account)
	for i, entry := range tx.Entries {
		if entry.AccountID == "" {
			result.fail("entry %d missing account", i)
			continue
		}
		account, ok := resolved[entry.AccountID]
		if !ok {
			var err error
			account, err = v.accounts.Get(ctx, entry.AccountID)
			if errors.Is(err, shared.ErrNotFound) {
				result.fail("entry %d references unknown account %s", i, entry.AccountID)
				continue
			}
			if err != nil {
				return nil, err
			}
			resolved[entry.AccountID] = account
		}
		if !account.IsActive {
			result.fail("account %s (%s) is inactive", account.AccountCode, account.Name)
		}
		if account.ShopID != tx.ShopID {
			result.fail("account %s belongs to a different shop", account.AccountCode)
		}
		if account.Type == accounts.TypeExpenses {
			children, err := v.accounts.ChildrenOf(ctx, account.ID)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if child.IsActive {
					result.fail("expense account %s has active children; post to the specific child", account.AccountCode)
					break
				}
			}
		}
		if tx.Type == TypeSale && account.Type == accounts.TypePurchases && entry.Type == accounts.SideDebit {
			result.fail("purchases account %s may not be debited in a sale", account.AccountCode)
		}
	}
	return resolved, nil
}

// checkFinancialYear requires an open year covering the transaction date.
func (v *Validator) checkFinancialYear(ctx context.Context, tx *Transaction, result *Result) error {
	year, err := v.years.OpenYear(ctx, tx.ShopID)
	if errors.Is(err, shared.ErrNotFound) {
		result.fail("no open financial year for shop %s", tx.ShopID)
		return nil
	}
	if err != nil {
		return err
	}
	result.Year = year
	if !year.Contains(tx.Date) {
		result.fail("date %s is outside the open financial year (%s to %s)",
			tx.Date.Format("2006-01-02"), year.StartDate.Format("2006-01-02"), year.EndDate.Format("2006-01-02"))
		return nil
	}
	if year.EndDate.Sub(tx.Date) <= v.limits.YearEndWarning {
		result.warn("date falls within the final %d days of the financial year", int(v.limits.YearEndWarning.Hours()/24))
	}
	return nil
}

// checkStockLifecycle enforces the opening/ending stock account rules.
func (v *Validator) checkStockLifecycle(tx *Transaction, resolved map[string]*accounts.Account, result *Result) {
	for _, entry := range tx.Entries {
		account := resolved[entry.AccountID]
		if account == nil || !account.IsStockAccount() {
			continue
		}
		if side := account.AllowedEntrySide(); side != accounts.SideAny && entry.Type != side {
			result.fail("stock account %s accepts only %s entries", account.AccountCode, side)
		}
		if result.Year != nil {
			switch account.Type {
			case accounts.TypeOpeningStock:
				if tx.Date.Sub(result.Year.StartDate) > v.limits.StockWindow {
					result.warn("opening stock recorded more than %d days after the year start", int(v.limits.StockWindow.Hours()/24))
				}
			case accounts.TypeEndingStock:
				if result.Year.EndDate.Sub(tx.Date) > v.limits.StockWindow {
					result.warn("ending stock recorded more than %d days before the year end", int(v.limits.StockWindow.Hours()/24))
				}
			}
		}
		if entry.Amount > v.limits.LargeStockWarn {
			result.warn("stock entry of %.2f exceeds the review threshold %.2f", entry.Amount, v.limits.LargeStockWarn)
		}
	}
}

// checkLimits applies permission and amount ceilings to the transaction total.
func (v *Validator) checkLimits(tx *Transaction, actor shared.Actor, result *Result) {
	debit, credit := tx.Totals()
	total := math.Max(debit, credit)
	if total > v.limits.AbsoluteCeiling {
		result.fail("amount %.2f exceeds the absolute ceiling %.2f", total, v.limits.AbsoluteCeiling)
	} else if !actor.IsAdmin() && total > v.limits.UserAmountCap {
		result.fail("amount %.2f exceeds the non-admin cap %.2f", total, v.limits.UserAmountCap)
	}
	if total >= v.limits.LargeAmountWarn && total <= v.limits.AbsoluteCeiling {
		result.warn("large transaction of %.2f", total)
	}
	if total >= 1000 && math.Mod(total, 1000) == 0 {
		result.warn("suspiciously round amount %.2f", total)
	}
}

// checkDates rejects future dates and dates beyond the configured cutoff.
func (v *Validator) checkDates(tx *Transaction, result *Result) {
	now := v.now()
	if tx.Date.After(now) {
		result.fail("date %s is in the future", tx.Date.Format("2006-01-02"))
	}
	if now.Sub(tx.Date) > v.limits.MaxPastAge {
		result.fail("date %s is older than the permitted cutoff", tx.Date.Format("2006-01-02"))
	}
}
