package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// ---- Authentication & Authorization (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "No valid authentication provided", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden(permission string) *AppError {
	return New("AUTH_003", fmt.Sprintf("Missing required permission: %s", permission), http.StatusForbidden)
}

// ---- API Key Lifecycle (KEY) ----

func ErrKeyQuotaExceeded() *AppError {
	return New("KEY_001", "Maximum 5 active API keys allowed", http.StatusConflict)
}

func ErrInvalidPermissions(names string) *AppError {
	return New("KEY_002", fmt.Sprintf("Invalid permissions: %s", names), http.StatusBadRequest)
}

func ErrKeyNotYetExpired() *AppError {
	return New("KEY_003", "Key must be expired to rollover", http.StatusBadRequest)
}

func ErrInvalidExpiry() *AppError {
	return New("KEY_004", "Invalid expiry code", http.StatusBadRequest)
}

// ---- Ledger Business Logic (WAL) ----

func ErrInvalidAmount(message string) *AppError {
	return New("WAL_001", message, http.StatusBadRequest)
}

func ErrInsufficientFunds(available, required int64) *AppError {
	return New("WAL_002",
		fmt.Sprintf("Insufficient balance. Available: %d, Required: %d", available, required),
		http.StatusPaymentRequired)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_003", "Cannot transfer to yourself", http.StatusBadRequest)
}

func ErrInvalidSignature() *AppError {
	return New("WAL_004", "Invalid signature", http.StatusUnauthorized)
}

func ErrUpstreamFailure(detail string, err error) *AppError {
	if detail == "" {
		detail = "Failed to initialize payment"
	}
	return Wrap("WAL_005", detail, http.StatusBadGateway, err)
}

// ---- Generic ----

func ErrNotFound(entity string) *AppError {
	return New("GEN_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Validation returns a 400 input error.
func Validation(message string) *AppError {
	return New("GEN_002", message, http.StatusBadRequest)
}

// InternalError wraps a datastore or atomicity failure.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
