package domain

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrStoreUnavailable  = errors.New("stock store unavailable")
	ErrPublishFailed     = errors.New("outcome publication failed")
	ErrDuplicateEvent    = errors.New("event already applied")
)
