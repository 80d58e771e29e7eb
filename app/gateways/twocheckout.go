package gateways

import (
	"context"
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

// TwoCheckoutConfig configures the 2Checkout adapter.
type TwoCheckoutConfig struct {
	MerchantCode  string
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
	Now           func() time.Time
}

// TwoCheckout places orders through the REST API, authenticating each call
// with the X-Avangate-Authentication header.
type TwoCheckout struct {
	cfg TwoCheckoutConfig
}

var (
	_ payment.Gateway       = (*TwoCheckout)(nil)
	_ payment.StatusFetcher = (*TwoCheckout)(nil)
)

func NewTwoCheckout(cfg TwoCheckoutConfig) *TwoCheckout {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &TwoCheckout{cfg: cfg}
}

func (t *TwoCheckout) Name() string            { return "twocheckout" }
func (t *TwoCheckout) SignatureHeader() string { return "X-2Checkout-Signature" }
func (t *TwoCheckout) WebhookSecret() string   { return t.cfg.WebhookSecret }

// authHeader signs len(code)+code+len(date)+date with the secret key.
func (t *TwoCheckout) authHeader() string {
	date := t.cfg.Now().UTC().Format("2006-01-02 15:04:05")
	code := t.cfg.MerchantCode
	msg := strconv.Itoa(len(code)) + code + strconv.Itoa(len(date)) + date
	hash := hmacHex(t.cfg.SecretKey, []byte(msg))
	return fmt.Sprintf(`code="%s" date="%s" hash="%s" algo="sha256"`, code, date, hash)
}

type tcoOrderRequest struct {
	Currency          string         `json:"Currency"`
	ExternalReference string         `json:"ExternalReference"`
	Source            string         `json:"Source"`
	Items             []tcoOrderItem `json:"Items"`
	BillingDetails    struct {
		Email string `json:"Email"`
	} `json:"BillingDetails"`
}

type tcoOrderItem struct {
	Name      string `json:"Name"`
	Quantity  int    `json:"Quantity"`
	IsDynamic bool   `json:"IsDynamic"`
	Price     struct {
		Amount string `json:"Amount"`
		Type   string `json:"Type"`
	} `json:"Price"`
}

type tcoOrder struct {
	RefNo  string `json:"RefNo"`
	Status string `json:"Status"`
	// PaymentURL is returned for orders that need the hosted payment page.
	PaymentURL string `json:"PaymentURL"`
}

type tcoError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (t *TwoCheckout) CreateIntent(ctx context.Context, req payment.IntentRequest) (intent payment.Intent, err error) {
	defer metrics.ObserveGateway(t.Name(), "create_intent", time.Now(), &err)

	item := tcoOrderItem{Name: req.Description, Quantity: 1, IsDynamic: true}
	if item.Name == "" {
		item.Name = "Order " + req.OrderID
	}
	item.Price.Amount = req.Amount.StringFixed(2)
	item.Price.Type = "CUSTOM"

	body := tcoOrderRequest{
		Currency:          strings.ToUpper(req.Currency),
		ExternalReference: req.OrderID,
		Source:            "checkout-api",
		Items:             []tcoOrderItem{item},
	}
	body.BillingDetails.Email = req.Email

	resp, err := http.Post(t.cfg.APIBase+"/rest/6.0/orders/").
		WithContext(ctx).
		Header("X-Avangate-Authentication", t.authHeader()).
		Body(body).
		Timeout(t.cfg.Timeout).
		Send()
	if err != nil {
		return payment.Intent{}, payment.NewGatewayError(t.Name(), "create_intent", err)
	}
	if !resp.OK() {
		return payment.Intent{}, payment.NewGatewayError(t.Name(), "create_intent", tcoFailure(resp))
	}

	var order tcoOrder
	if err := resp.JSON(&order); err != nil {
		return payment.Intent{}, payment.NewGatewayError(t.Name(), "create_intent", err)
	}
	if order.RefNo == "" {
		return payment.Intent{}, payment.NewGatewayError(t.Name(), "create_intent",
			fmt.Errorf("response missing RefNo"))
	}

	token := order.PaymentURL
	if token == "" {
		token = "https://secure.2checkout.com/order/checkout.php?" + url.Values{
			"merchant": {t.cfg.MerchantCode},
			"refno":    {order.RefNo},
		}.Encode()
	}
	return payment.Intent{ID: order.RefNo, ClientToken: token}, nil
}

func (t *TwoCheckout) FetchOutcome(ctx context.Context, refNo string) (outcome payment.Outcome, err error) {
	defer metrics.ObserveGateway(t.Name(), "fetch_intent", time.Now(), &err)

	resp, err := http.Get(t.cfg.APIBase+"/rest/6.0/orders/"+url.PathEscape(refNo)+"/").
		WithContext(ctx).
		Header("X-Avangate-Authentication", t.authHeader()).
		Timeout(t.cfg.Timeout).
		Retry(2, 200*time.Millisecond).
		Send()
	if err != nil {
		return "", payment.NewGatewayError(t.Name(), "fetch_intent", err)
	}
	if !resp.OK() {
		return "", payment.NewGatewayError(t.Name(), "fetch_intent", tcoFailure(resp))
	}

	var order tcoOrder
	if err := resp.JSON(&order); err != nil {
		return "", payment.NewGatewayError(t.Name(), "fetch_intent", err)
	}
	return tcoOutcome(order.Status), nil
}

func tcoOutcome(status string) payment.Outcome {
	switch strings.ToUpper(status) {
	case "COMPLETE", "AUTHRECEIVED":
		return payment.OutcomeSucceeded
	case "CANCELED", "CANCELLED":
		return payment.OutcomeCanceled
	case "REVERSED", "INVALID", "FAILED":
		return payment.OutcomeFailed
	default:
		return payment.OutcomeIgnored
	}
}

func tcoFailure(resp *http.Response) error {
	var e tcoError
	if err := resp.JSON(&e); err == nil && e.Message != "" {
		return fmt.Errorf("status %d: %s: %s", resp.StatusCode, e.ErrorCode, e.Message)
	}
	return resp.Throw()
}

type tcoEvent struct {
	ID          string `json:"IPN_ID"`
	RefNo       string `json:"REFNO"`
	OrderStatus string `json:"ORDERSTATUS"`
}

func (t *TwoCheckout) VerifyWebhook(payload []byte, signature, secret string) (payment.VerifiedEvent, error) {
	if err := verifyHexHMAC(payload, signature, secret); err != nil {
		return payment.VerifiedEvent{}, err
	}

	var evt tcoEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return payment.VerifiedEvent{}, fmt.Errorf("twocheckout: decode event: %w", err)
	}

	return payment.VerifiedEvent{
		ID:              evt.ID,
		EventType:       "order." + strings.ToLower(evt.OrderStatus),
		GatewayIntentID: evt.RefNo,
		Outcome:         tcoOutcome(evt.OrderStatus),
	}, nil
}
