package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const messageSuccess = "Success"

// Envelope is the body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var (
	// ErrInvalidID is returned when a path or body id is not a UUID.
	ErrInvalidID = errors.New("id is not valid")

	// ErrInvalidBody is returned when the request body cannot be bound.
	ErrInvalidBody = errors.New("input is invalid")
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Message: messageSuccess, Data: data})
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)

	c.JSON(status, Envelope{Success: false, Message: err.Error(), Code: code})
}

// statusFor maps an error to the HTTP status and the error code reported in the envelope.
func statusFor(err error) (int, string) {
	switch {
	case ledger.IsDomainError(err):
		return http.StatusBadRequest, ledger.Kind(err)
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, borrowing.ErrInvalidStatusFilter),
		errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return http.StatusBadRequest, "ALREADY_REGISTERED"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ledger.KindTransactionFailure
	default:
		return http.StatusInternalServerError, ledger.KindTransactionFailure
	}
}
