package accounts

// CreateInput carries the fields needed to create an account.
type CreateInput struct {
	ShopID         string  `json:"shopId" validate:"required"`
	AccountCode    string  `json:"accountCode" validate:"required,min=2"`
	Name           string  `json:"name" validate:"required,min=3"`
	Type           Type    `json:"type" validate:"required"`
	ParentID       string  `json:"parentId,omitempty"`
	OpeningBalance float64 `json:"openingBalance,omitempty"`
	Category       string  `json:"category,omitempty"`
}

// UpdateInput patches mutable account fields. Nil fields are untouched; an
// explicit empty ParentID detaches the account from its parent.
type UpdateInput struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=3"`
	ParentID *string `json:"parentId,omitempty"`
	Category *string `json:"category,omitempty"`
}
