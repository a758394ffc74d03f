package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound: a referenced product vanished between the cart
	// snapshot and the transaction read.
	ErrProductNotFound = errors.New("product not found")

	// ErrTransactionConflict: the store aborted on a write conflict and the
	// bounded retries were exhausted. The submission is safely retryable.
	ErrTransactionConflict = errors.New("checkout conflicted with a concurrent order, please retry")

	// ErrBackendUnavailable: the store could not be reached or the circuit
	// breaker is open. Nothing was committed.
	ErrBackendUnavailable = errors.New("store temporarily unavailable")
)

// ValidationError is a precondition failure caught before any transaction
// is opened. The customer corrects the field and resubmits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InsufficientStockError is raised inside the transaction when the live
// stock cannot cover the requested quantity. Available carries the value
// observed under the transaction lock.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s, only %d left", e.ProductName, e.Available)
}
