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

// ---- Transfer Engine (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient balance in account", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Invalid amount", http.StatusBadRequest)
}

func ErrUnknownAccount() *AppError {
	return New("LED_003", "Account not found", http.StatusNotFound)
}

// ---- Payment Sessions (SES) ----

func ErrSessionNotFound() *AppError {
	return New("SES_001", "Payment session not found", http.StatusNotFound)
}

func ErrSessionNotPending() *AppError {
	return New("SES_002", "Payment session is no longer pending", http.StatusConflict)
}

func ErrUnpricedAmount() *AppError {
	return New("SES_003", "No token price configured for this euro amount", http.StatusBadRequest)
}

func ErrSessionExpired() *AppError {
	return New("SES_004", "Payment session has expired", http.StatusGone)
}

// ---- Clearing (CLR) ----

func ErrInsufficientAvailable() *AppError {
	return New("CLR_001", "Requested tokens exceed available balance", http.StatusPaymentRequired)
}

func ErrInvalidTransition() *AppError {
	return New("CLR_002", "Clearing request is not in the required status", http.StatusConflict)
}

func ErrClearingNotFound() *AppError {
	return New("CLR_003", "Clearing request not found", http.StatusNotFound)
}

// ---- Top-ups (TOP) ----

func ErrUnknownOrInactivePack() *AppError {
	return New("TOP_001", "Top-up pack not found or inactive", http.StatusNotFound)
}

// ---- Identity (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Insufficient role for this operation", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}
