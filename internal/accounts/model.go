package accounts

import "time"

// Type enumerates the chart-of-accounts node kinds.
type Type string

const (
	TypeCash         Type = "CASH"
	TypeBank         Type = "BANK"
	TypeSales        Type = "SALES"
	TypePurchases    Type = "PURCHASES"
	TypeExpenses     Type = "EXPENSES"
	TypeCustomer     Type = "CUSTOMER"
	TypeSupplier     Type = "SUPPLIER"
	TypeOpeningStock Type = "OPENING_STOCK"
	TypeEndingStock  Type = "ENDING_STOCK"
	TypeEquity       Type = "EQUITY"
)

// Classification groups accounts for reporting.
type Classification string

const (
	ClassAssets      Classification = "ASSETS"
	ClassLiabilities Classification = "LIABILITIES"
	ClassEquity      Classification = "EQUITY"
	ClassRevenue     Classification = "REVENUE"
	ClassExpenses    Classification = "EXPENSES"
)

// Nature is the side that increases an account's balance.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// Side is an entry direction.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
	// SideAny marks accounts with no entry-side restriction.
	SideAny Side = ""
)

// Account is a shop-scoped chart-of-accounts node. ParentID is a weak
// reference into the same collection; Level is 1-based depth derived from
// the parent chain.
type Account struct {
	ID             string         `json:"id"`
	ShopID         string         `json:"shopId"`
	AccountCode    string         `json:"accountCode"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	Nature         Nature         `json:"nature"`
	Type           Type           `json:"type"`
	ParentID       string         `json:"parentId,omitempty"`
	Level          int            `json:"level"`
	IsActive       bool           `json:"isActive"`
	OpeningBalance float64        `json:"openingBalance"`
	Category       string         `json:"category,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// capability table resolved once per type, instead of re-branching on the
// type string at every call site.
type capabilities struct {
	classification Classification
	nature         Nature
	stock          bool
	entrySide      Side
}

var typeCapabilities = map[Type]capabilities{
	TypeCash:         {ClassAssets, NatureDebit, false, SideAny},
	TypeBank:         {ClassAssets, NatureDebit, false, SideAny},
	TypeSales:        {ClassRevenue, NatureCredit, false, SideAny},
	TypePurchases:    {ClassExpenses, NatureDebit, false, SideAny},
	TypeExpenses:     {ClassExpenses, NatureDebit, false, SideAny},
	TypeCustomer:     {ClassAssets, NatureDebit, false, SideAny},
	TypeSupplier:     {ClassLiabilities, NatureCredit, false, SideAny},
	TypeOpeningStock: {ClassAssets, NatureDebit, true, SideDebit},
	TypeEndingStock:  {ClassAssets, NatureDebit, true, SideDebit},
	TypeEquity:       {ClassEquity, NatureCredit, false, SideAny},
}

// KnownType reports whether t is a supported account type.
func KnownType(t Type) bool {
	_, ok := typeCapabilities[t]
	return ok
}

// DefaultClassification returns the reporting class for the type.
func DefaultClassification(t Type) Classification {
	return typeCapabilities[t].classification
}

// DefaultNature returns the balance-increasing side for the type.
func DefaultNature(t Type) Nature {
	return typeCapabilities[t].nature
}

// IsStockAccount reports whether the account participates in the stock
// lifecycle rules.
func (a *Account) IsStockAccount() bool {
	return typeCapabilities[a.Type].stock
}

// AllowedEntrySide returns the only permitted entry side, or SideAny.
func (a *Account) AllowedEntrySide() Side {
	return typeCapabilities[a.Type].entrySide
}

// userCreatableTypes is the allow-list for non-privileged actors.
var userCreatableTypes = map[Type]bool{
	TypeCash:      true,
	TypeSales:     true,
	TypePurchases: true,
	TypeExpenses:  true,
	TypeCustomer:  true,
	TypeSupplier:  true,
}

// restrictedParentTypes may not gain children created by non-privileged actors.
var restrictedParentTypes = map[Type]bool{
	TypeBank:         true,
	TypeOpeningStock: true,
	TypeEndingStock:  true,
	TypeEquity:       true,
}

// UserMayCreate reports whether a non-privileged actor may create this type.
func UserMayCreate(t Type) bool {
	return userCreatableTypes[t]
}

// RestrictedParent reports whether non-privileged actors may not create
// children under this type.
func RestrictedParent(t Type) bool {
	return restrictedParentTypes[t]
}
