package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrOrderNotFound is returned when no order matches the given reference.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTransactionNotFound is returned when no transaction row matches.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidPaymentID is returned when a payment reference is missing or empty.
	ErrInvalidPaymentID = errors.New("payment id is required")
	// ErrSignatureMismatch is returned when a webhook signature does not verify.
	ErrSignatureMismatch = errors.New("invalid webhook signature")
	// ErrSignatureRequired is returned in strict mode when a webhook carries no signature.
	ErrSignatureRequired = errors.New("webhook signature required")
	// ErrInvalidCredentials is returned on a failed admin login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "ORDER_NOT_FOUND")
	case errors.Is(err, ErrTransactionNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "TRANSACTION_NOT_FOUND")
	case errors.Is(err, ErrInvalidPaymentID):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_PAYMENT_ID")
	case errors.Is(err, ErrSignatureMismatch), errors.Is(err, ErrSignatureRequired):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "INVALID_CREDENTIALS")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
