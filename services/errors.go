package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds. Every AppError unwraps to exactly one of these, so callers
// can branch with errors.Is without caring about the specific code.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrConflict             = errors.New("conflict")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrNoProvidersAvailable = errors.New("no providers available")
	ErrGateway              = errors.New("payment gateway error")
	ErrTransactionTimeout   = errors.New("transaction timeout")
	ErrUnavailable          = errors.New("service unavailable")
)

// Named errors the order flow distinguishes
var (
	ErrOrderNotFound     = NewAppError(ErrNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrOrderAlreadyTaken = NewAppError(ErrConflict, "ORDER_ALREADY_TAKEN", "Order has already been accepted by another partner")
)

// AppError is a domain error with a stable machine-readable code
type AppError struct {
	Kind      error
	Code      string
	Message   string
	Retryable bool
	Err       error
}

// NewAppError creates an AppError of the given kind
func NewAppError(kind error, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is matches another AppError by code, so a wrapped copy of a named
// error still satisfies errors.Is against the original.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

func validationError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrValidation, "VALIDATION_ERROR", fmt.Sprintf(format, args...))
}

func notFoundError(code, message string) *AppError {
	return NewAppError(ErrNotFound, code, message)
}

func forbiddenError(message string) *AppError {
	return NewAppError(ErrForbidden, "FORBIDDEN", message)
}

func conflictError(code, message string) *AppError {
	return NewAppError(ErrConflict, code, message)
}

func gatewayError(err error) *AppError {
	return &AppError{Kind: ErrGateway, Code: "GATEWAY_ERROR", Message: "Payment gateway request failed", Err: err}
}

func insufficientBalanceError() *AppError {
	return NewAppError(ErrInsufficientBalance, "INSUFFICIENT_BALANCE", "Wallet balance is insufficient")
}

// Postgres SQLSTATE codes we classify
const (
	pgUniqueViolation   = "23505"
	pgQueryCanceled     = "57014"
	pgLockNotAvailable  = "55P03"
	pgSerializationFail = "40001"
)

// classifyDBError turns storage failures into domain errors. Errors that
// are already AppErrors pass through unchanged.
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Kind: ErrTransactionTimeout, Code: "TRANSACTION_TIMEOUT", Message: "The operation timed out, please retry", Retryable: true, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgQueryCanceled, pgLockNotAvailable, pgSerializationFail:
			return &AppError{Kind: ErrTransactionTimeout, Code: "TRANSACTION_TIMEOUT", Message: "The operation timed out, please retry", Retryable: true, Err: err}
		case pgUniqueViolation:
			return &AppError{Kind: ErrConflict, Code: "CONFLICT", Message: "Resource already exists", Err: err}
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &AppError{Kind: ErrConflict, Code: "CONFLICT", Message: "Resource already exists", Err: err}
	}

	return fmt.Errorf("database error: %w", err)
}
