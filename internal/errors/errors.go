// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSessionNotFound   = errors.New("no active session")
	ErrPositionNotFound  = errors.New("position not found")
	ErrDataFetch         = errors.New("market data fetch failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrRefreshCooldown   = errors.New("refresh cooldown active")
)

// ValidationError represents a rejected configuration or command input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientFundsError represents a trade blocked by the cash balance.
type InsufficientFundsError struct {
	Symbol    string
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %.2f, have %.2f", e.Symbol, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// NewInsufficientFundsError creates a new InsufficientFundsError.
func NewInsufficientFundsError(symbol string, required, available float64) *InsufficientFundsError {
	return &InsufficientFundsError{
		Symbol:    symbol,
		Required:  required,
		Available: available,
	}
}

// DataFetchError represents a failed price or candle fetch for a symbol.
type DataFetchError struct {
	Symbol string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("data fetch failed for %s: %v", e.Symbol, e.Err)
}

func (e *DataFetchError) Unwrap() error {
	return ErrDataFetch
}

// PersistenceError represents a failed snapshot or restore of one key.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error for key %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return ErrPersistence
}

// Result is the envelope returned by session commands to the UI layer.
// Failures are reported here, never as panics across the API boundary.
type Result struct {
	Success bool
	Message string
}

// OK returns a successful Result.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail returns a failed Result carrying the error message.
func Fail(err error) Result {
	if err == nil {
		return Result{Success: false, Message: "unknown error"}
	}
	return Result{Success: false, Message: err.Error()}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
