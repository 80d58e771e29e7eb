package gateways_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/gateways"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/config"
)

func newTwoCheckout(base string) *gateways.TwoCheckout {
	return gateways.NewTwoCheckout(gateways.TwoCheckoutConfig{
		MerchantCode:  "MERCH1",
		SecretKey:     "tco_secret",
		WebhookSecret: "tco_whsec",
		APIBase:       base,
		Timeout:       2 * time.Second,
		Now:           func() time.Time { return fixedNow },
	})
}

func TestTwoCheckoutCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/6.0/orders/", r.URL.Path)
		auth := r.Header.Get("X-Avangate-Authentication")
		assert.True(t, strings.HasPrefix(auth, `code="MERCH1" date="2026-03-01 12:00:00" hash="`), auth)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ord-7", body["ExternalReference"])
		assert.Equal(t, "EUR", body["Currency"])
		w.Write([]byte(`{"RefNo":"123456","Status":"PENDING"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	intent, err := newTwoCheckout(srv.URL).CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: "ord-7", Amount: decimal.RequireFromString("42.00"), Currency: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456", intent.ID)
	assert.Contains(t, intent.ClientToken, "refno=123456")
}

func TestTwoCheckoutFetchOutcome(t *testing.T) {
	status := "COMPLETE"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/6.0/orders/123456/", r.URL.Path)
		w.Write([]byte(`{"RefNo":"123456","Status":"` + status + `"}`)) //nolint:errcheck
	}))
	defer srv.Close()
	gw := newTwoCheckout(srv.URL)

	for s, want := range map[string]payment.Outcome{
		"COMPLETE": payment.OutcomeSucceeded,
		"CANCELED": payment.OutcomeCanceled,
		"REVERSED": payment.OutcomeFailed,
		"PENDING":  payment.OutcomeIgnored,
	} {
		status = s
		got, err := gw.FetchOutcome(context.Background(), "123456")
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}

func TestTwoCheckoutFetchOutcomeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error_code":"NOT_FOUND","message":"Order not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTwoCheckout(srv.URL).FetchOutcome(context.Background(), "nope")
	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, err.Error(), "Order not found")
}

func TestTwoCheckoutVerifyWebhook(t *testing.T) {
	gw := newTwoCheckout("")
	payload := []byte(`{"IPN_ID":"ipn-1","REFNO":"123456","ORDERSTATUS":"COMPLETE"}`)

	evt, err := gw.VerifyWebhook(payload, hexSign(payload, "tco_whsec"), gw.WebhookSecret())
	require.NoError(t, err)
	assert.Equal(t, "123456", evt.GatewayIntentID)
	assert.Equal(t, payment.OutcomeSucceeded, evt.Outcome)
	assert.Equal(t, "order.complete", evt.EventType)

	_, err = gw.VerifyWebhook(payload, hexSign([]byte(`{}`), "tco_whsec"), gw.WebhookSecret())
	var sigErr *payment.SignatureError
	assert.ErrorAs(t, err, &sigErr)
}

func TestFromConfigRegistersConfiguredProviders(t *testing.T) {
	config.Set("STRIPE_SECRET_KEY", "sk_test")
	config.Set("SAFEPAY_API_KEY", "")
	config.Set("TWOCHECKOUT_SECRET_KEY", "tco")
	t.Cleanup(func() {
		config.Set("STRIPE_SECRET_KEY", "")
		config.Set("TWOCHECKOUT_SECRET_KEY", "")
	})

	reg := gateways.FromConfig()
	assert.Equal(t, []string{"stripe", "twocheckout"}, reg.Names())
}
