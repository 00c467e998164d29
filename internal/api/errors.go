package api

import (
	"errors"
	"net/http"

	"cashier_service/internal/transaction"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps an engine error to an HTTP status. Webhook endpoints answer
// 503 for gateway outages so the processor retries the delivery.
func statusFor(err error, webhook bool) int {
	switch transaction.Class(err) {
	case transaction.ErrInvalidInput:
		return http.StatusBadRequest
	case transaction.ErrInvalidSignature:
		return http.StatusUnauthorized
	case transaction.ErrNotFound:
		return http.StatusNotFound
	case transaction.ErrPolicyViolation:
		if errors.Is(err, transaction.ErrInsufficientFunds) {
			return http.StatusPaymentRequired
		}
		if errors.Is(err, transaction.ErrBannedPlayer) {
			return http.StatusForbidden
		}
		if errors.Is(err, transaction.ErrInvalidTransition) {
			return http.StatusConflict
		}
		return http.StatusUnprocessableEntity
	case transaction.ErrVerificationFailed:
		return http.StatusUnprocessableEntity
	case transaction.ErrGatewayUnavailable:
		if webhook {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error, webhook bool) {
	status := statusFor(err, webhook)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = http.StatusText(status)
	}
	_ = c.Error(err)
	c.JSON(status, errorResponse{Error: msg, Code: transaction.Code(err)})
}
