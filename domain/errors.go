package domain

import "errors"

var (
	// ErrNotFound is returned by lookups of ids that are not resting in the book
	ErrNotFound = errors.New("order not found")

	// ErrInvalidOrder is returned when an incoming order violates the caller contract
	ErrInvalidOrder = errors.New("invalid order")
)
