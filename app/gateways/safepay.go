package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/http"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
)

// SafepayConfig configures the Safepay adapter.
type SafepayConfig struct {
	APIKey        string
	WebhookSecret string
	APIBase       string
	// CheckoutURL is the hosted checkout page the client is sent to.
	CheckoutURL string
	Environment string
	Timeout     time.Duration
}

// Safepay opens a tracker via the order init API and hands the client a
// hosted checkout URL. Webhooks carry a hex HMAC-SHA256 of the raw body.
type Safepay struct {
	cfg SafepayConfig
}

var _ payment.Gateway = (*Safepay)(nil)

func NewSafepay(cfg SafepayConfig) *Safepay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &Safepay{cfg: cfg}
}

func (s *Safepay) Name() string            { return "safepay" }
func (s *Safepay) SignatureHeader() string { return "X-SFPY-Signature" }
func (s *Safepay) WebhookSecret() string   { return s.cfg.WebhookSecret }

type safepayInitRequest struct {
	Client      string  `json:"client"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Environment string  `json:"environment"`
	OrderID     string  `json:"order_id"`
}

type safepayInitResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
	Status struct {
		Errors  []string `json:"errors"`
		Message string   `json:"message"`
	} `json:"status"`
}

func (s *Safepay) CreateIntent(ctx context.Context, req payment.IntentRequest) (intent payment.Intent, err error) {
	defer metrics.ObserveGateway(s.Name(), "create_intent", time.Now(), &err)

	amount, _ := req.Amount.Round(2).Float64()
	resp, err := http.Post(s.cfg.APIBase + "/order/v1/init").
		WithContext(ctx).
		Body(safepayInitRequest{
			Client:      s.cfg.APIKey,
			Amount:      amount,
			Currency:    strings.ToUpper(req.Currency),
			Environment: s.cfg.Environment,
			OrderID:     req.OrderID,
		}).
		Timeout(s.cfg.Timeout).
		Send()
	if err != nil {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", err)
	}

	var out safepayInitResponse
	if !resp.OK() {
		if jerr := resp.JSON(&out); jerr == nil && len(out.Status.Errors) > 0 {
			return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent",
				fmt.Errorf("status %d: %s", resp.StatusCode, strings.Join(out.Status.Errors, "; ")))
		}
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", resp.Throw())
	}
	if err := resp.JSON(&out); err != nil {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent", err)
	}
	if out.Data.Token == "" {
		return payment.Intent{}, payment.NewGatewayError(s.Name(), "create_intent",
			fmt.Errorf("response missing tracker token"))
	}

	q := url.Values{
		"env":      {s.cfg.Environment},
		"beacon":   {out.Data.Token},
		"order_id": {req.OrderID},
		"source":   {"custom"},
	}
	return payment.Intent{
		ID:          out.Data.Token,
		ClientToken: s.cfg.CheckoutURL + "?" + q.Encode(),
	}, nil
}

type safepayEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Tracker string `json:"tracker"`
		State   string `json:"state"`
	} `json:"data"`
}

func (s *Safepay) VerifyWebhook(payload []byte, signature, secret string) (payment.VerifiedEvent, error) {
	if err := verifyHexHMAC(payload, signature, secret); err != nil {
		return payment.VerifiedEvent{}, err
	}

	var evt safepayEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return payment.VerifiedEvent{}, fmt.Errorf("safepay: decode event: %w", err)
	}

	out := payment.VerifiedEvent{
		ID:              evt.ID,
		EventType:       evt.Type,
		GatewayIntentID: evt.Data.Tracker,
		Outcome:         payment.OutcomeIgnored,
	}
	switch evt.Type {
	case "payment.succeeded":
		out.Outcome = payment.OutcomeSucceeded
	case "payment.failed":
		out.Outcome = payment.OutcomeFailed
	case "payment.cancelled", "payment.canceled":
		out.Outcome = payment.OutcomeCanceled
	}
	return out, nil
}
