package controllers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
)

func TestWebhookPaysOrderOnceAcrossRedeliveries(t *testing.T) {
	h := newHarness(t)
	h.checkout(t, "pi_paid")
	h.cart.On("ResetCart", mock.Anything, "u1").Return(nil)

	payload := stripeEvent("payment_intent.succeeded", "pi_paid")

	rec := h.webhook("stripe", sign(payload), payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"result":"applied"}`, rec.Body.String())

	rec = h.webhook("stripe", sign(payload), payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"result":"already_terminal"}`, rec.Body.String())

	order, err := h.orders.FindByIntentID(context.Background(), "pi_paid")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.PaymentStatus)
	h.cart.AssertNumberOfCalls(t, "ResetCart", 1)
}

func TestWebhookBadSignatureNeverMutates(t *testing.T) {
	h := newHarness(t)
	h.checkout(t, "pi_forged")

	payload := stripeEvent("payment_intent.succeeded", "pi_forged")
	for name, sig := range map[string]string{
		"missing":  "",
		"garbage":  "t=1,v1=00",
		"tampered": sign(stripeEvent("payment_intent.succeeded", "pi_other")),
	} {
		rec := h.webhook("stripe", sig, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	order, err := h.orders.FindByIntentID(context.Background(), "pi_forged")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.PaymentStatus)
	h.cart.AssertNotCalled(t, "ResetCart", mock.Anything, mock.Anything)
}

func TestWebhookUnknownIntentIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	payload := stripeEvent("payment_intent.succeeded", "pi_999")

	rec := h.webhook("stripe", sign(payload), payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"result":"not_found"}`, rec.Body.String())

	_, err := h.orders.FindByIntentID(context.Background(), "pi_999")
	assert.Error(t, err)
}

func TestWebhookIgnoredEvent(t *testing.T) {
	h := newHarness(t)
	h.checkout(t, "pi_quiet")
	payload := stripeEvent("payment_intent.created", "pi_quiet")

	rec := h.webhook("stripe", sign(payload), payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"result":"ignored"}`, rec.Body.String())

	order, err := h.orders.FindByIntentID(context.Background(), "pi_quiet")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.PaymentStatus)
}

func TestWebhookFailedPaymentKeepsCart(t *testing.T) {
	h := newHarness(t)
	h.checkout(t, "pi_declined")
	payload := stripeEvent("payment_intent.payment_failed", "pi_declined")

	rec := h.webhook("stripe", sign(payload), payload)
	assert.Equal(t, http.StatusOK, rec.Code)

	order, err := h.orders.FindByIntentID(context.Background(), "pi_declined")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, order.PaymentStatus)
	h.cart.AssertNotCalled(t, "ResetCart", mock.Anything, mock.Anything)
}

func TestWebhookCartOutageIsDegradedSuccess(t *testing.T) {
	h := newHarness(t)
	h.checkout(t, "pi_degraded")
	h.cart.On("ResetCart", mock.Anything, "u1").Return(errors.New("cart down"))
	payload := stripeEvent("payment_intent.succeeded", "pi_degraded")

	rec := h.webhook("stripe", sign(payload), payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"result":"applied","degraded":true}`, rec.Body.String())
}

func TestWebhookUnknownProvider(t *testing.T) {
	h := newHarness(t)
	rec := h.webhook("paypal", "", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookMalformedPayload(t *testing.T) {
	h := newHarness(t)
	payload := `{"id": "evt_1", "type": `

	rec := h.webhook("stripe", sign(payload), payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
