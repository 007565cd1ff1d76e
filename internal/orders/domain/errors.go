package domain

import (
	"errors"
	"fmt"
)

// Validation failures. These are rejected before any state is mutated and
// the caller can recover by correcting the request.
var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidDelivery = errors.New("delivery date must be after now and within 48 hours")
	ErrBelowMinimum    = errors.New("order total is below the minimum order value")
	ErrCouponInvalid   = errors.New("coupon is invalid, expired, or already used")
)

// Conflict failures. The persisted state no longer matches what the caller
// saw; refreshing and retrying with new data may succeed, a blind retry will
// not.
var (
	ErrAlreadyClaimed = errors.New("order is no longer available for claiming")
	ErrNotOwner       = errors.New("order is held by a different carrier")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
	ErrInvalidState   = errors.New("order state does not permit this transition")
)

// ValidationError marks input the caller can fix by correcting the request.
// Only errors carrying this type (or one of the validation sentinels above)
// surface their message to the client; everything unclassified is reported
// as an internal failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError from a plain message.
func Invalid(msg string) error {
	return &ValidationError{Err: errors.New(msg)}
}

// InsufficientStockError reports which product made a reservation fail. The
// whole reservation is rejected; no partial decrements are left behind.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// CollaboratorError wraps a failure from an external collaborator that the
// engine depends on for pricing. Checkout aborts when one of these surfaces.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
