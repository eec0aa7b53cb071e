package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64
	UserRef   string
	UpdatedAt time.Time
}

// CartLineItem is one (cart, SKU) row. A persisted row always has Qty >= 1;
// setting a quantity to zero deletes the row instead.
type CartLineItem struct {
	CartID    int64
	ProductID int64
	SKU       string
	Qty       int
}

// SetOutcome reports what SetItem actually did, for response-status purposes.
type SetOutcome string

const (
	SetApplied SetOutcome = "set"
	SetDeleted SetOutcome = "deleted"
	SetNoop    SetOutcome = "no-op"
)

type SnapshotItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartSnapshot is the derived read model of a cart: line items joined against
// current catalog pricing, ordered by SKU, with the canonical normalization
// string and its signature.
type CartSnapshot struct {
	Items         []SnapshotItem  `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Currency      string          `json:"currency"`
	Normalization string          `json:"normalization"`
	Signature     string          `json:"signature"`
}
