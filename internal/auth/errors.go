package auth

import (
	"errors"
	"net/http"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// ErrorCode is a stable machine-readable error identifier for API responses.
type ErrorCode string

const (
	ErrorInvalidCredentials ErrorCode = "InvalidCredentials"
	ErrorForbidden          ErrorCode = "Forbidden"
	ErrorUnauthenticated    ErrorCode = "Unauthenticated"
	ErrorEmailUnverified    ErrorCode = "EmailUnverified"
	ErrorInvalidOTP         ErrorCode = "InvalidOtp"
	ErrorInvalidToken       ErrorCode = "InvalidToken"
	ErrorDuplicateEmail     ErrorCode = "DuplicateEmail"
	ErrorDuplicateKey       ErrorCode = "DuplicateKey"
	ErrorNotFound           ErrorCode = "NotFound"
	ErrorInvalidArgument    ErrorCode = "InvalidArgument"
	ErrorNotification       ErrorCode = "NotificationFailure"
	ErrorInternal           ErrorCode = "InternalError"
)

// APIError is an error ready to be written as an HTTP response.
type APIError struct {
	// Code is the error code.
	Code ErrorCode `json:"code"`

	// Message is the error message.
	Message string `json:"message"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

func (e *APIError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAPIError maps err onto an APIError. Unknown errors become a 500 with a
// generic message so infrastructure details never leak.
func NewAPIError(err error) *APIError {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return &APIError{Code: ErrorInvalidCredentials, Message: "invalid email or password", HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, domain.ErrUnauthenticated):
		return &APIError{Code: ErrorUnauthenticated, Message: err.Error(), HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, domain.ErrInvalidOTP):
		return &APIError{Code: ErrorInvalidOTP, Message: err.Error(), HTTPStatus: http.StatusUnauthorized}

	case errors.Is(err, domain.ErrForbidden):
		return &APIError{Code: ErrorForbidden, Message: err.Error(), HTTPStatus: http.StatusForbidden}

	case errors.Is(err, domain.ErrEmailUnverified):
		return &APIError{Code: ErrorEmailUnverified, Message: err.Error(), HTTPStatus: http.StatusForbidden}

	case errors.Is(err, domain.ErrInvalidToken):
		return &APIError{Code: ErrorInvalidToken, Message: err.Error(), HTTPStatus: http.StatusBadRequest}

	case errors.Is(err, domain.ErrDuplicateEmail):
		return &APIError{Code: ErrorDuplicateEmail, Message: err.Error(), HTTPStatus: http.StatusConflict}

	case errors.Is(err, domain.ErrDuplicateKey):
		return &APIError{Code: ErrorDuplicateKey, Message: err.Error(), HTTPStatus: http.StatusConflict}

	case errors.Is(err, domain.ErrNotFound):
		return &APIError{Code: ErrorNotFound, Message: err.Error(), HTTPStatus: http.StatusNotFound}

	case errors.Is(err, domain.ErrInvalidArgument):
		return &APIError{Code: ErrorInvalidArgument, Message: err.Error(), HTTPStatus: http.StatusBadRequest}

	case errors.Is(err, domain.ErrNotificationFailure):
		return &APIError{Code: ErrorNotification, Message: err.Error(), HTTPStatus: http.StatusBadGateway}

	default:
		return &APIError{Code: ErrorInternal, Message: "internal server error", HTTPStatus: http.StatusInternalServerError}
	}
}
