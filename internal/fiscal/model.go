package fiscal

import "time"

// YearStatus enumerates financial year lifecycle values.
type YearStatus string

const (
	YearStatusOpen   YearStatus = "open"
	YearStatusClosed YearStatus = "closed"
)

// FinancialYear is the shop-scoped accounting period consumed read-only by
// the ledger core. Transactions may post only into an open year.
type FinancialYear struct {
	ID                string     `json:"id"`
	ShopID            string     `json:"shopId"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           time.Time  `json:"endDate"`
	Status            YearStatus `json:"status"`
	OpeningStockValue float64    `json:"openingStockValue"`
	ClosingStockValue float64    `json:"closingStockValue"`
}

// IsOpen reports whether the year accepts postings.
func (y FinancialYear) IsOpen() bool {
	return y.Status == YearStatusOpen
}

// Contains reports whether the date falls within [StartDate, EndDate].
func (y FinancialYear) Contains(date time.Time) bool {
	return !date.Before(y.StartDate) && !date.After(y.EndDate)
}

// DaysUntilEnd returns the number of whole days between date and the year end.
func (y FinancialYear) DaysUntilEnd(date time.Time) int {
	return int(y.EndDate.Sub(date).Hours() / 24)
}

// DaysSinceStart returns the number of whole days since the year started.
func (y FinancialYear) DaysSinceStart(date time.Time) int {
	return int(date.Sub(y.StartDate).Hours() / 24)
}
