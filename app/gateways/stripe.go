package gateways

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/http"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
	// Tolerance bounds the age of a signed webhook timestamp. Default 5m.
	Tolerance time.Duration
	// Now is the clock used for the tolerance check. Default time.Now.
	Now func() time.Time
}

// Stripe opens PaymentIntents and verifies Stripe-Signature webhooks.
type Stripe struct {
	cfg StripeConfig
}

var (
	_ payment.Gateway       = (*Stripe)(nil)
	_ payment.StatusFetcher = (*Stripe)(nil)
)

func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.stripe.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &Stripe{cfg: cfg}
}

func (s *Stripe) Name() string            { return "stripe" }
func (s *Stripe) SignatureHeader() string { return "Stripe-Signature" }
func (s *Stripe) WebhookSecret() string   { return s.cfg.WebhookSecret }

type stripeIntent struct {
	ID               string          `json:"id"`
	ClientSecret     string          `json:"client_secret"`
	Status           string          `json:"status"`
	LastPaymentError json.RawMessage `json:"last_payment_error"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Stripe) CreateIntent(ctx context.Context, req payment.IntentRequest) (intent payment.Intent, err error) {
	defer metrics.ObserveGateway(s.Name(), "create_intent", time.Now(), &err)

	form := url.Values{
		"amount":                             {strconv.FormatInt(minorUnits(req.Amount), 10)},
		"currency":                           {strings.ToLower(req.Currency)},
		"automatic_payment_methods[enabled]": {"true"},
		"metadata[order_id]":                 {req.OrderID},
	}
	if req.Email != "" {
		form.Set("receipt_email", req.Email)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}

	call := http.Post(s.cfg.APIBase + "/v1/payment_intents").
		WithContext(ctx).
		Bearer(s.cfg.SecretKey).
		Form(form).
		Timeout(s.cfg.Timeout)
	if req.IdempotencyKey != "" {
		call.Header("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := call.Send()
	if err != nil {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", err)
	}
	if !resp.OK() {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", stripeFailure(resp))
	}

	var pi stripeIntent
	if err := resp.JSON(&pi); err != nil {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", err)
	}
	if pi.ID == "" || pi.ClientSecret == "" {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent",
			fmt.Errorf("response missing id or client_secret"))
	}

	return payment.Intent{ID: pi.ID, ClientToken: pi.ClientSecret}, nil
}

// FetchOutcome reads the intent's current status. Intents still awaiting
// the customer report OutcomeIgnored.
func (s *Stripe) FetchOutcome(ctx context.Context, intentID string) (outcome payment.Outcome, err error) {
	defer metrics.ObserveGateway(s.Name(), "fetch_intent", time.Now(), &err)

	resp, err := http.Get(s.cfg.APIBase+"/v1/payment_intents/"+url.PathEscape(intentID)).
		WithContext(ctx).
		Bearer(s.cfg.SecretKey).
		Timeout(s.cfg.Timeout).
		Retry(2, 200*time.Millisecond).
		Send()
	if err != nil {
		return "", payment.NewGatewayError(s.Name(), "fetch_intent", err)
	}
	if !resp.OK() {
		return "", payment.NewGatewayError(s.Name(), "fetch_intent", stripeFailure(resp))
	}

	var pi stripeIntent
	if err := resp.JSON(&pi); err != nil {
		return "", payment.NewGatewayError(s.Name(), "fetch_intent", err)
	}

	switch pi.Status {
	case "succeeded":
		return payment.OutcomeSucceeded, nil
	case "canceled":
		return payment.OutcomeCanceled, nil
	case "requires_payment_method":
		if len(pi.LastPaymentError) > 0 && string(pi.LastPaymentError) != "null" {
			return payment.OutcomeFailed, nil
		}
	}
	return payment.OutcomeIgnored, nil
}

func stripeFailure(resp *http.Response) error {
	var se stripeError
	if err := resp.JSON(&se); err == nil && se.Error.Message != "" {
		return fmt.Errorf("status %d: %s: %s", resp.StatusCode, se.Error.Type, se.Error.Message)
	}
	return resp.Throw()
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Object string `json:"object"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook implements Stripe's scheme: the header carries t=<unix>
// and one or more v1=<hex>, where each v1 is HMAC-SHA256 over "<t>.<body>".
func (s *Stripe) VerifyWebhook(payload []byte, signature, secret string) (payment.VerifiedEvent, error) {
	if err := s.verifySignature(payload, signature, secret); err != nil {
		return payment.VerifiedEvent{}, err
	}

	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return payment.VerifiedEvent{}, fmt.Errorf("stripe: decode event: %w", err)
	}

	out := payment.VerifiedEvent{
		ID:              evt.ID,
		EventType:       evt.Type,
		GatewayIntentID: evt.Data.Object.ID,
		Outcome:         payment.OutcomeIgnored,
	}
	if evt.Data.Object.Object != "" && evt.Data.Object.Object != "payment_intent" {
		return out, nil
	}

	switch evt.Type {
	case "payment_intent.succeeded":
		out.Outcome = payment.OutcomeSucceeded
	case "payment_intent.payment_failed":
		out.Outcome = payment.OutcomeFailed
	case "payment_intent.canceled":
		out.Outcome = payment.OutcomeCanceled
	}
	return out, nil
}

func (s *Stripe) verifySignature(payload []byte, header, secret string) error {
	if secret == "" {
		return &payment.SignatureError{Reason: "webhook secret not configured"}
	}
	if strings.TrimSpace(header) == "" {
		return &payment.SignatureError{Reason: "missing signature header"}
	}

	var ts string
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			if b, err := hex.DecodeString(v); err == nil {
				sigs = append(sigs, b)
			}
		}
	}
	if ts == "" || len(sigs) == 0 {
		return &payment.SignatureError{Reason: "malformed signature header"}
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return &payment.SignatureError{Reason: "malformed timestamp"}
	}
	age := s.cfg.Now().Sub(time.Unix(unix, 0))
	if age > s.cfg.Tolerance || age < -s.cfg.Tolerance {
		return &payment.SignatureError{Reason: "timestamp outside tolerance"}
	}

	want, _ := hex.DecodeString(hmacHex(secret, []byte(ts), []byte("."), payload))
	for _, sig := range sigs {
		if hmac.Equal(sig, want) {
			return nil
		}
	}
	return &payment.SignatureError{Reason: "signature mismatch"}
}

// SignStripePayload builds a Stripe-Signature header value for payload.
// Used by tests and the local webhook replay tooling.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hmacHex(secret, []byte(ts), []byte("."), payload)
}
