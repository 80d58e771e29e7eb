package controllers

import (
	"net/http"
	"strings"

	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/bind"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

// IdempotencyHeader carries the client's checkout attempt key.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 255

type CheckoutController struct {
	checkout *services.CheckoutService
}

func NewCheckoutController(checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkout: checkout}
}

// Pay opens a card payment for the cart.
//
//	POST /api/payments
func (c *CheckoutController) Pay(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	errs, err := bind.JSON(w, r, &req)
	if err != nil {
		writeBindError(w, err)
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := c.checkout.InitiatePayment(r.Context(), middleware.UserIDFromCtx(r.Context()), key, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.Replayed {
		response.Success(w, res)
		return
	}
	response.Created(w, res)
}

// PlaceCashOrder records a cash-on-delivery order.
//
//	POST /api/orders
func (c *CheckoutController) PlaceCashOrder(w http.ResponseWriter, r *http.Request) {
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	errs, err := bind.JSON(w, r, &req)
	if err != nil {
		writeBindError(w, err)
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	order, created, err := c.checkout.PlaceCashOrder(r.Context(), middleware.UserIDFromCtx(r.Context()), key, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !created {
		response.Success(w, order)
		return
	}
	response.Created(w, order)
}

func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLen {
		response.ValidationError(w, map[string]string{
			IdempotencyHeader: "The Idempotency-Key must not be greater than 255 characters.",
		})
		return "", false
	}
	return key, true
}
