package errs

import (
	"errors"
	"fmt"
)

// Category groups error codes into the ranges used by API clients.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryState         Category = "state"
	CategoryResource      Category = "resource"
	CategorySystem        Category = "system"
)

// Error is a failure with a stable numeric code and a human-readable message.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Code    int
	Message string
	Context string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Context != "" {
		msg = fmt.Sprintf("[%s] %s", e.Context, msg)
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Category derives the category from the code range.
func (e *Error) Category() Category {
	return CategoryOf(e.Code)
}

// CategoryOf maps a code to its range.
func CategoryOf(code int) Category {
	switch {
	case code >= 1 && code <= 99:
		return CategoryValidation
	case code >= 100 && code <= 199:
		return CategoryAuthorization
	case code >= 200 && code <= 299:
		return CategoryState
	case code >= 300 && code <= 399:
		return CategoryResource
	default:
		return CategorySystem
	}
}

func newErr(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Validation
var (
	ErrInvalidAmount      = newErr(1, "invalid amount: must be greater than zero")
	ErrInvalidDuration    = newErr(2, "invalid duration: must be greater than zero")
	ErrInvalidPercent     = newErr(3, "invalid percent: must be between 0 and 100")
	ErrInvalidType        = newErr(4, "invalid type: value not allowed")
	ErrOutOfRange         = newErr(5, "value out of allowed range")
	ErrEmptyField         = newErr(6, "required field must not be empty")
	ErrInvalidPayload     = newErr(7, "attestation payload does not match its type")
	ErrInvalidCapacity    = newErr(8, "invalid pool capacity")
	ErrInvalidAPY         = newErr(9, "invalid pool apy")
	ErrBatchTooLarge      = newErr(10, "batch exceeds maximum size")
	ErrArithmeticOverflow = newErr(11, "arithmetic overflow")
	ErrDivisionByZero     = newErr(12, "division by zero")
)

// Authorization
var (
	ErrUnauthorized = newErr(100, "unauthorized: caller not allowed")
	ErrNotOwner     = newErr(101, "caller is not the owner")
	ErrNotAdmin     = newErr(102, "caller is not the admin")
	ErrRateLimited  = newErr(104, "rate limit exceeded")
)

// State
var (
	ErrAlreadyInitialized = newErr(200, "component already initialized")
	ErrNotInitialized     = newErr(201, "component not initialized")
	ErrWrongState         = newErr(202, "invalid state for this operation")
	ErrAlreadyProcessed   = newErr(203, "item already processed")
	ErrReentrancy         = newErr(204, "reentrancy detected")
	ErrNotActive          = newErr(205, "commitment or item not active")
	ErrEmergencyMode      = newErr(206, "action not allowed in emergency mode")
)

// Resource
var (
	ErrNotFound            = newErr(300, "resource not found")
	ErrInsufficientBalance = newErr(301, "insufficient balance")
	ErrInsufficientValue   = newErr(302, "insufficient commitment value")
	ErrTransferFailed      = newErr(303, "asset transfer failed")
	ErrNoSuitablePools     = newErr(304, "no suitable pools for strategy")
)

// System
var (
	ErrStorage        = newErr(400, "storage operation failed")
	ErrCrossComponent = newErr(401, "cross-component call failed")
	ErrRegistryFailed = newErr(402, "ownership registry call failed")
)

// With returns a copy of base annotated with a call-site context.
func With(base *Error, context string) *Error {
	return &Error{Code: base.Code, Message: base.Message, Context: context}
}

// Wrap returns a copy of base carrying cause, so errors.Is matches both.
func Wrap(base *Error, context string, cause error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Context: context, cause: cause}
}

// Code extracts the stable code from err, or the storage code for foreign errors.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrStorage.Code
}

// MessageFor returns the canonical message for a code.
func MessageFor(code int) string {
	for _, e := range all {
		if e.Code == code {
			return e.Message
		}
	}
	return "unknown error"
}

var all = []*Error{
	ErrInvalidAmount, ErrInvalidDuration, ErrInvalidPercent, ErrInvalidType, ErrOutOfRange,
	ErrEmptyField, ErrInvalidPayload, ErrInvalidCapacity, ErrInvalidAPY, ErrBatchTooLarge,
	ErrArithmeticOverflow, ErrDivisionByZero,
	ErrUnauthorized, ErrNotOwner, ErrNotAdmin, ErrRateLimited,
	ErrAlreadyInitialized, ErrNotInitialized, ErrWrongState, ErrAlreadyProcessed, ErrReentrancy,
	ErrNotActive, ErrEmergencyMode,
	ErrNotFound, ErrInsufficientBalance, ErrInsufficientValue, ErrTransferFailed, ErrNoSuitablePools,
	ErrStorage, ErrCrossComponent, ErrRegistryFailed,
}
