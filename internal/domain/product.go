package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a product is created without an explicit
// currency, and reported for an empty cart snapshot.
const DefaultCurrency = "INR"

type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProductUpdate carries the fields of a partial catalog update. Nil means
// "leave unchanged".
type ProductUpdate struct {
	Name     *string
	Price    *decimal.Decimal
	Currency *string
}
