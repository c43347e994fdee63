/*
errors.go - Error taxonomy for the action ledger

ERROR CATEGORIES:
  1. ValidationFailure  - Malformed request, rejected before storage access
  2. ItemNotFound       - Item code does not resolve
  3. InsufficientStock  - Stock-reducing action exceeds on-hand quantity
  4. TransactionFailure - Storage, constraint or timeout error; rolled back

Every failure returned by the validator or the engine matches exactly one
of the sentinels below with errors.Is. Structured types carry the detail a
caller needs to act (offending item code, available/requested amounts).
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for a malformed request (missing item code or action).
	ErrValidation = errors.New("validation failed")

	// ErrItemNotFound is returned when an item code does not resolve to any item.
	ErrItemNotFound = errors.New("item not found")

	// ErrInsufficientStock is returned when a stock-reducing action requests
	// more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTransactionFailed is returned when the unit of work could not commit.
	// Nothing was written; the identical request may be resubmitted.
	ErrTransactionFailed = errors.New("failed to complete inventory transaction")

	// ErrNotificationNotFound is returned when acknowledging an unknown notification.
	ErrNotificationNotFound = errors.New("notification not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ItemNotFoundError struct {
	ItemCode string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("Item ID %s not found.", e.ItemCode)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ItemCode  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TransactionError wraps the storage error that aborted a unit of work.
// It matches both ErrTransactionFailed and the underlying cause.
type TransactionError struct {
	ItemCode string
	Err      error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s (item %s): %v", ErrTransactionFailed, e.ItemCode, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransactionFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrNotificationNotFound)
}

// IsRetryable returns true if resubmitting the identical request may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}
