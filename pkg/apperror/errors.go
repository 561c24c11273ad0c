package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error carrying client-visible details.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes referenced outside this package.
const (
	CodeWalletNotFound      = "WAL_001"
	CodeWalletLocked        = "WAL_002"
	CodeInsufficientFunds   = "PAY_001"
	CodeInvalidAmount       = "PAY_002"
	CodeUnsupportedCurrency = "PAY_008"
	CodeInvalidSignature    = "SEC_002"
	CodeGatewayUnavailable  = "GW_001"
	CodeHouseInsolvent      = "GAME_001"
	CodeInvalidStake        = "GAME_002"
	CodeSeedNotCommitted    = "GAME_004"
	CodeTxConflict          = "SYS_004"
)

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

// ---- Wallet (WAL) ----

func ErrWalletNotFound() *AppError {
	return New(CodeWalletNotFound, "Wallet not found", http.StatusNotFound)
}

func ErrWalletLocked() *AppError {
	return New(CodeWalletLocked, "Wallet is locked", http.StatusLocked)
}

// ---- Payment Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAmountOutOfRange(min, max int64, currency string) *AppError {
	return New("PAY_005", "Amount outside allowed range", http.StatusUnprocessableEntity).
		WithDetails(map[string]any{"min": min, "max": max, "currency": currency})
}

func ErrUnsupportedCurrency(code string) *AppError {
	return New(CodeUnsupportedCurrency, fmt.Sprintf("Unsupported currency %q", code), http.StatusBadRequest)
}

func ErrUnsupportedPaymentMethod(method string) *AppError {
	return New("PAY_009", fmt.Sprintf("Unsupported payment method %q", method), http.StatusBadRequest)
}

// ---- Gateway (GW) ----

// ErrGatewayUnavailable is retryable; the attempted deposit is echoed back.
func ErrGatewayUnavailable(err error, details map[string]any) *AppError {
	e := Wrap(CodeGatewayUnavailable, "Payment gateway unavailable, please retry", http.StatusServiceUnavailable, err)
	e.Details = details
	return e
}

// ---- Games (GAME) ----

func ErrHouseInsolvent() *AppError {
	return New(CodeHouseInsolvent, "House cannot cover the potential payout for this bet", http.StatusConflict)
}

func ErrInvalidStake(message string) *AppError {
	return New(CodeInvalidStake, message, http.StatusBadRequest)
}

func ErrUnknownGame(game string) *AppError {
	return New("GAME_003", fmt.Sprintf("Unknown game %q", game), http.StatusBadRequest)
}

// ErrSeedNotCommitted is returned when a bet arrives without a published
// server seed hash to play against.
func ErrSeedNotCommitted() *AppError {
	return New(CodeSeedNotCommitted, "No server seed committed for this wallet, request one before betting", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// ErrTransactionConflict marks lock timeouts, deadlocks and serialization
// failures. Callers may retry.
func ErrTransactionConflict(err error) *AppError {
	return Wrap(CodeTxConflict, "Concurrent update conflict, please retry", http.StatusServiceUnavailable, err)
}

func ErrSeedStoreUnavailable(err error) *AppError {
	return Wrap("SYS_005", "Seed commitment store unavailable, please retry", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
