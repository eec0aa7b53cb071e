package service

import "errors"

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidProduct  = errors.New("invalid product")
)
