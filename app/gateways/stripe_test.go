package gateways_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/gateways"
	"github.com/shashiranjanraj/checkout/app/payment"
)

const whsec = "whsec_test"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStripe(base string) *gateways.Stripe {
	return gateways.NewStripe(gateways.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: whsec,
		APIBase:       base,
		Timeout:       2 * time.Second,
		Now:           func() time.Time { return fixedNow },
	})
}

func stripeEvent(eventType, intentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"object":"payment_intent"}}}`,
		eventType, intentID))
}

func TestStripeCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2599", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "ord-1", r.PostForm.Get("metadata[order_id]"))
		w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc","status":"requires_payment_method"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	intent, err := newStripe(srv.URL).CreateIntent(context.Background(), payment.IntentRequest{
		OrderID:        "ord-1",
		Amount:         decimal.RequireFromString("25.99"),
		Currency:       "USD",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientToken)
}

func TestStripeCreateIntentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","message":"Your card was declined."}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newStripe(srv.URL).CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: "ord-1", Amount: decimal.NewFromInt(10), Currency: "usd",
	})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "stripe", gwErr.Provider)
	assert.False(t, gwErr.Timeout())
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestStripeCreateIntentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	gw := gateways.NewStripe(gateways.StripeConfig{
		SecretKey: "sk_test", APIBase: srv.URL, Timeout: 50 * time.Millisecond,
	})
	_, err := gw.CreateIntent(context.Background(), payment.IntentRequest{
		OrderID: "ord-1", Amount: decimal.NewFromInt(10), Currency: "usd",
	})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Timeout())
	assert.True(t, errors.Is(err, payment.ErrTimeout))
}

func TestStripeFetchOutcome(t *testing.T) {
	cases := map[string]struct {
		body string
		want payment.Outcome
	}{
		"succeeded":  {`{"id":"pi_1","status":"succeeded"}`, payment.OutcomeSucceeded},
		"canceled":   {`{"id":"pi_1","status":"canceled"}`, payment.OutcomeCanceled},
		"declined":   {`{"id":"pi_1","status":"requires_payment_method","last_payment_error":{"code":"card_declined"}}`, payment.OutcomeFailed},
		"processing": {`{"id":"pi_1","status":"processing"}`, payment.OutcomeIgnored},
		"fresh":      {`{"id":"pi_1","status":"requires_payment_method","last_payment_error":null}`, payment.OutcomeIgnored},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
				w.Write([]byte(tc.body)) //nolint:errcheck
			}))
			defer srv.Close()

			got, err := newStripe(srv.URL).FetchOutcome(context.Background(), "pi_1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStripeVerifyWebhook(t *testing.T) {
	gw := newStripe("")
	payload := stripeEvent("payment_intent.succeeded", "pi_123")

	evt, err := gw.VerifyWebhook(payload, gateways.SignStripePayload(payload, whsec, fixedNow), whsec)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "pi_123", evt.GatewayIntentID)
	assert.Equal(t, payment.OutcomeSucceeded, evt.Outcome)
}

func TestStripeVerifyWebhookOutcomes(t *testing.T) {
	gw := newStripe("")
	cases := map[string]payment.Outcome{
		"payment_intent.payment_failed": payment.OutcomeFailed,
		"payment_intent.canceled":       payment.OutcomeCanceled,
		"payment_intent.created":        payment.OutcomeIgnored,
		"charge.refunded":               payment.OutcomeIgnored,
	}
	for eventType, want := range cases {
		payload := stripeEvent(eventType, "pi_1")
		evt, err := gw.VerifyWebhook(payload, gateways.SignStripePayload(payload, whsec, fixedNow), whsec)
		require.NoError(t, err, eventType)
		assert.Equal(t, want, evt.Outcome, eventType)
	}
}

func TestStripeVerifyWebhookRejects(t *testing.T) {
	gw := newStripe("")
	payload := stripeEvent("payment_intent.succeeded", "pi_123")
	valid := gateways.SignStripePayload(payload, whsec, fixedNow)

	cases := map[string]struct {
		payload   []byte
		signature string
		secret    string
	}{
		"missing header":  {payload, "", whsec},
		"no secret":       {payload, valid, ""},
		"wrong secret":    {payload, gateways.SignStripePayload(payload, "whsec_other", fixedNow), whsec},
		"tampered body":   {append([]byte(nil), append(payload, ' ')...), valid, whsec},
		"malformed":       {payload, "garbage", whsec},
		"too old":         {payload, gateways.SignStripePayload(payload, whsec, fixedNow.Add(-10*time.Minute)), whsec},
		"from the future": {payload, gateways.SignStripePayload(payload, whsec, fixedNow.Add(10*time.Minute)), whsec},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := gw.VerifyWebhook(tc.payload, tc.signature, tc.secret)
			var sigErr *payment.SignatureError
			assert.ErrorAs(t, err, &sigErr)
		})
	}
}

func TestStripeVerifyWebhookAcceptsAnyMatchingV1(t *testing.T) {
	gw := newStripe("")
	payload := stripeEvent("payment_intent.succeeded", "pi_123")
	header := gateways.SignStripePayload(payload, whsec, fixedNow) + ",v1=deadbeef"

	_, err := gw.VerifyWebhook(payload, header, whsec)
	assert.NoError(t, err)
}
