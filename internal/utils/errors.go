package utils

import (
	"errors"
	"fmt"
)

// Common application errors used across services.
var (
	ErrStockExceeded     = errors.New("STOCK_EXCEEDED")
	ErrValidation        = errors.New("VALIDATION_ERROR")
	ErrRemoteUnavailable = errors.New("REMOTE_UNAVAILABLE")
	ErrRemoteRejected    = errors.New("REMOTE_REJECTED")
	ErrAuthRequired      = errors.New("AUTH_REQUIRED")
	ErrProductNotFound   = errors.New("PRODUCT_NOT_FOUND")
	ErrLineNotFound      = errors.New("LINE_NOT_FOUND")
	ErrInvalidToken      = errors.New("INVALID_TOKEN")
)

// Validation errors. All of them match ErrValidation with errors.Is.
var (
	ErrQuantityNotPositive = validationError("quantity must be greater than zero")
	ErrProductIDRequired   = validationError("product id is required")
	ErrVariantRequired     = validationError("a size must be selected for this product")
)

type validation struct{ msg string }

func validationError(msg string) error { return &validation{msg: msg} }

func (e *validation) Error() string { return e.msg }

func (e *validation) Is(target error) bool { return target == ErrValidation }

// StockExceededError reports a requested quantity above the available stock.
type StockExceededError struct {
	ProductID string
	Variant   string
	Limit     int
	Requested int
}

func (e *StockExceededError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("only %d left in stock for size %s", e.Limit, e.Variant)
	}
	return fmt.Sprintf("only %d left in stock", e.Limit)
}

func (e *StockExceededError) Is(target error) bool { return target == ErrStockExceeded }

// ErrorCode maps an error onto the API error code used in responses.
func ErrorCode(err error) string {
	for _, known := range []error{
		ErrStockExceeded, ErrValidation, ErrAuthRequired, ErrRemoteUnavailable, ErrRemoteRejected,
		ErrProductNotFound, ErrLineNotFound, ErrInvalidToken,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "INTERNAL_ERROR"
}
