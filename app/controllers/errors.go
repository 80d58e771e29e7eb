package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/bind"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *payment.ValidationError
		gwErr *payment.GatewayError
	)

	switch {
	case errors.As(err, &vErr):
		response.ValidationError(w, vErr.Fields)
	case errors.Is(err, payment.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, payment.ErrOrderNotFound):
		response.NotFound(w, "Order not found")
	case errors.Is(err, payment.ErrUnknownProvider):
		response.NotFound(w, "Unknown payment provider")
	case errors.Is(err, payment.ErrIdempotencyKeyReused):
		response.Error(w, http.StatusConflict, "Idempotency-Key already used by a completed order")
	case errors.Is(err, payment.ErrIdempotencyKeyMismatch):
		response.Error(w, http.StatusUnprocessableEntity, "Idempotency-Key already used with a different request")
	case errors.As(err, &gwErr):
		msg := "Payment provider unavailable"
		if gwErr.Timeout() {
			msg = "Payment provider timed out"
		}
		response.Error(w, http.StatusBadGateway, msg)
	case errors.Is(err, payment.ErrTimeout):
		response.Error(w, http.StatusBadGateway, "Payment provider timed out")
	default:
		logger.WithCtx(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeBindError answers a body that could not be decoded.
func writeBindError(w http.ResponseWriter, err error) {
	if errors.Is(err, bind.ErrTooLarge) {
		response.Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	response.Error(w, http.StatusBadRequest, err.Error())
}
