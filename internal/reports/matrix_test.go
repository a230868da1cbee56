package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBalances() []DimensionalBalance {
	return []DimensionalBalance{
		{ShopID: "shop-1", FinancialYearID: "fy-2024", Amount: 100},
		{ShopID: "shop-1", FinancialYearID: "fy-2025", Amount: 250},
		{ShopID: "shop-2", FinancialYearID: "fy-2024", Amount: 40},
		{ShopID: "shop-2", FinancialYearID: "fy-2025", Amount: 60},
		{ShopID: "shop-1", FinancialYearID: "fy-2025", Amount: 50},
	}
}

func TestMultiDimensionalAllViews(t *testing.T) {
	m := MultiDimensional(sampleBalances(), Criteria{})

	assert.Equal(t, 500.0, m.GrandTotal)
	assert.Equal(t, 400.0, m.PerShop["shop-1"])
	assert.Equal(t, 100.0, m.PerShop["shop-2"])
	assert.Equal(t, 140.0, m.PerYear["fy-2024"])
	assert.Equal(t, 360.0, m.PerYear["fy-2025"])
	require.Contains(t, m.PerShopYear, "shop-1")
	assert.Equal(t, 300.0, m.PerShopYear["shop-1"]["fy-2025"])
	assert.Equal(t, 100.0, m.PerShopYear["shop-1"]["fy-2024"])
}

func TestMultiDimensionalShopFilter(t *testing.T) {
	m := MultiDimensional(sampleBalances(), Criteria{ShopIDs: []string{"shop-2"}})

	assert.Equal(t, 100.0, m.GrandTotal)
	assert.NotContains(t, m.PerShop, "shop-1")
	assert.Equal(t, 40.0, m.PerYear["fy-2024"])
}

func TestMultiDimensionalYearFilter(t *testing.T) {
	m := MultiDimensional(sampleBalances(), Criteria{YearIDs: []string{"fy-2024"}})

	assert.Equal(t, 140.0, m.GrandTotal)
	assert.Equal(t, 100.0, m.PerShop["shop-1"])
	assert.NotContains(t, m.PerYear, "fy-2025")
}

func TestMultiDimensionalCombinedFilter(t *testing.T) {
	m := MultiDimensional(sampleBalances(), Criteria{
		ShopIDs: []string{"shop-1"},
		YearIDs: []string{"fy-2025"},
	})

	assert.Equal(t, 300.0, m.GrandTotal)
	assert.Equal(t, 300.0, m.PerShopYear["shop-1"]["fy-2025"])
}

func TestMultiDimensionalEmpty(t *testing.T) {
	m := MultiDimensional(nil, Criteria{})

	assert.Zero(t, m.GrandTotal)
	assert.Empty(t, m.PerShop)
	assert.Empty(t, m.PerYear)
}
