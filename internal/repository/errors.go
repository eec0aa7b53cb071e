package repository

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrDuplicateSKU    = errors.New("product with this sku already exists")
	// ErrStoreContention marks a transient lock/serialization failure; the
	// caller may retry the whole operation.
	ErrStoreContention = errors.New("store contention")
)
