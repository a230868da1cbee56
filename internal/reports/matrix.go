package reports

// DimensionalBalance is one flat balance observation to be folded into the
// reporting matrix.
type DimensionalBalance struct {
	ShopID          string  `json:"shopId"`
	FinancialYearID string  `json:"financialYearId"`
	Amount          float64 `json:"amount"`
}

// Criteria restricts which observations participate. Empty slices mean no
// restriction on that dimension.
type Criteria struct {
	ShopIDs []string
	YearIDs []string
}

// Matrix holds the four aggregate views reporting collaborators consume.
type Matrix struct {
	// PerShopYear is shopId -> financialYearId -> total.
	PerShopYear map[string]map[string]float64 `json:"perShopYear"`
	// PerShop is shopId -> total across all years.
	PerShop map[string]float64 `json:"perShop"`
	// PerYear is financialYearId -> total across all shops.
	PerYear map[string]float64 `json:"perYear"`
	// GrandTotal sums every observation.
	GrandTotal float64 `json:"grandTotal"`
}

// MultiDimensional folds a flat balance set into the four views with one
// pass: each observation feeds every dimension it belongs to.
func MultiDimensional(balances []DimensionalBalance, criteria Criteria) Matrix {
	shopFilter := toSet(criteria.ShopIDs)
	yearFilter := toSet(criteria.YearIDs)
	m := Matrix{
		PerShopYear: make(map[string]map[string]float64),
		PerShop:     make(map[string]float64),
		PerYear:     make(map[string]float64),
	}
	for _, b := range balances {
		if shopFilter != nil && !shopFilter[b.ShopID] {
			continue
		}
		if yearFilter != nil && !yearFilter[b.FinancialYearID] {
			continue
		}
		if m.PerShopYear[b.ShopID] == nil {
			m.PerShopYear[b.ShopID] = make(map[string]float64)
		}
		m.PerShopYear[b.ShopID][b.FinancialYearID] += b.Amount
		m.PerShop[b.ShopID] += b.Amount
		m.PerYear[b.FinancialYearID] += b.Amount
		m.GrandTotal += b.Amount
	}
	return m
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
