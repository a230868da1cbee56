package fiscal

import (
	"context"
	"sort"

	"github.com/shopbooks/shopbooks/internal/docstore"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// Collection is where financial year documents live in the remote store.
const Collection = "financial_years"

// Registry exposes the read-only financial year contract.
type Registry interface {
	OpenYear(ctx context.Context, shopID string) (*FinancialYear, error)
	YearsByShop(ctx context.Context, shopID string) ([]FinancialYear, error)
	YearByID(ctx context.Context, id string) (*FinancialYear, error)
}

type registry struct {
	store docstore.Store
}

// NewRegistry constructs a Registry over the document store.
func NewRegistry(store docstore.Store) Registry {
	return &registry{store: store}
}

// OpenYear returns the currently open year for the shop, or ErrNotFound when
// none is open.
func (r *registry) OpenYear(ctx context.Context, shopID string) (*FinancialYear, error) {
	raws, err := r.store.Query(ctx, Collection,
		docstore.Eq("shopId", shopID),
		docstore.Eq("status", string(YearStatusOpen)))
	if err != nil {
		return nil, err
	}
	years, err := docstore.DecodeAll[FinancialYear](raws)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, shared.ErrNotFound
	}
	// More than one open year is a data fault; take the latest by start date.
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.Before(years[j].StartDate) })
	year := years[len(years)-1]
	return &year, nil
}

// YearsByShop returns all of the shop's years ordered by start date.
func (r *registry) YearsByShop(ctx context.Context, shopID string) ([]FinancialYear, error) {
	raws, err := r.store.Query(ctx, Collection, docstore.Eq("shopId", shopID))
	if err != nil {
		return nil, err
	}
	years, err := docstore.DecodeAll[FinancialYear](raws)
	if err != nil {
		return nil, err
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.Before(years[j].StartDate) })
	return years, nil
}

func (r *registry) YearByID(ctx context.Context, id string) (*FinancialYear, error) {
	var year FinancialYear
	if err := r.store.Get(ctx, Collection, id, &year); err != nil {
		return nil, err
	}
	return &year, nil
}
