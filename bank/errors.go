/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every public operation reports failure through these values; nothing
  panics and nothing escapes as an untyped crash.

ERROR CATEGORIES:
  1. Validation errors - malformed or missing input (*ValidationError)
  2. Not-found errors - no matching user or account
  3. Funds errors - withdrawals beyond the available balance
  4. Store errors - infrastructure failures (*StoreError), some transient

USAGE:
  if errors.Is(err, bank.ErrInsufficientFunds) {
      // tell the customer
  }
  if bank.IsRetryable(err) {
      // safe to resubmit
  }

SEE ALSO:
  - store.go: adapters translate driver errors into ErrDuplicateKey / *StoreError
  - engine.go: produces funds errors and ErrTransactionFailed
*/
package bank

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrEmptyField          = errors.New("required field is empty")
	ErrInvalidKind         = errors.New("invalid user kind")
	ErrMissingDesignation  = errors.New("designation is required for employees")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAmountOverflow      = errors.New("amount would overflow the account balance")
	ErrInvalidAccountNo    = errors.New("account number cannot be blank or zero")
	ErrInvalidOwner        = errors.New("owner id cannot be blank")
	ErrOwnerRequired       = errors.New("operation requires the account owner")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrOperationNotAllowed = errors.New("operation not allowed on this account type")

	// Not found
	ErrNotFound        = errors.New("user not found")
	ErrOwnerNotFound   = errors.New("owner not found")
	ErrAccountNotFound = errors.New("account not found")

	// Funds
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrZeroBalance       = errors.New("balance is zero or negative")

	// ErrTransactionFailed is returned when a balance write affected no row,
	// e.g. the account went inactive between resolve and mutate.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDuplicateKey is returned by Store inserts when the primary key is taken.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConcurrentModification is returned when compare-and-swap retries run out.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAllocationExhausted is wrapped in a *StoreError when identity
	// allocation gives up after its bounded number of cycles.
	ErrAllocationExhausted = errors.New("identifier allocation exhausted")
)

var validationSentinels = []error{
	ErrEmptyField, ErrInvalidKind, ErrMissingDesignation, ErrInvalidAmount, ErrAmountOverflow,
	ErrInvalidAccountNo, ErrInvalidOwner, ErrOwnerRequired, ErrInvalidAccountType,
	ErrInvalidOperation, ErrOperationNotAllowed,
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Err.Error()
	}
	return fmt.Sprintf("validation error: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// InsufficientFundsError provides details about a rejected withdrawal.
// It unwraps to ErrZeroBalance when nothing was available at all.
type InsufficientFundsError struct {
	AcctNo    AcctNo
	Available int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("account %d: current balance $%d is zero/negative, funds cannot be withdrawn",
			e.AcctNo, e.Available)
	}
	return fmt.Sprintf("account %d: withdrawal amount $%d is greater than current balance $%d",
		e.AcctNo, e.Requested, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error {
	if e.Available <= 0 {
		return ErrZeroBalance
	}
	return ErrInsufficientFunds
}

// StoreError wraps an infrastructure failure. Transient failures
// (timeouts, lost connections, allocation races) are eligible for retry.
type StoreError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr wraps err unless it is already a domain or store error.
// Deadline expiry is always transient.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || errors.Is(err, ErrDuplicateKey) {
		return err
	}
	return &StoreError{
		Op:        op,
		Err:       err,
		Transient: errors.Is(err, context.DeadlineExceeded),
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for malformed or missing input.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, s := range validationSentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// IsNotFound returns true if the error indicates a missing user or account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOwnerNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsInsufficientFunds covers both the shortfall and the zero-balance case.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrZeroBalance)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsInsufficientFunds(err)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConcurrentModification) {
		return true
	}
	var se *StoreError
	return errors.As(err, &se) && se.Transient
}
