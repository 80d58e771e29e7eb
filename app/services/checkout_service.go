package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/crypt"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
	"github.com/shashiranjanraj/checkout/pkg/validate"
)

// maxDerivedAttempts bounds how many terminal orders one unchanged draft can
// accumulate before checkout gives up.
const maxDerivedAttempts = 50

// CheckoutRequest is the order draft submitted by the client.
type CheckoutRequest struct {
	FullName    string           `json:"fullName" validate:"required,max=255"`
	Address     string           `json:"address" validate:"required,max=1000"`
	PhoneNumber string           `json:"phoneNumber" validate:"required,phone"`
	OrderData   models.OrderData `json:"orderData" validate:"required,min=1,max=300,dive"`
	// Total is optional. When sent it must match the server-side sum.
	Total    decimal.Decimal `json:"total"`
	Provider string          `json:"provider,omitempty" validate:"nullable,max=32"`
}

// Validate runs the field rules and checks the computed total. It returns
// the total the order will be stored with.
func (r *CheckoutRequest) Validate() (decimal.Decimal, error) {
	if errs := validate.Struct(r); validate.HasErrors(errs) {
		return decimal.Zero, &payment.ValidationError{Fields: errs}
	}

	total := r.OrderData.Total()
	if !total.IsPositive() {
		return decimal.Zero, payment.Invalid("total", "The total must be greater than 0.")
	}
	if !r.Total.IsZero() && !r.Total.Equal(total) {
		return decimal.Zero, payment.Invalid("total",
			fmt.Sprintf("The total does not match the order items (expected %s).", total.StringFixed(2)))
	}
	return total, nil
}

// fingerprint derives an idempotency key from everything that identifies
// one checkout attempt.
func (r *CheckoutRequest) fingerprint(userID, method, provider string) string {
	parts := []string{userID, method, provider,
		strings.TrimSpace(r.FullName), strings.TrimSpace(r.Address), strings.TrimSpace(r.PhoneNumber)}
	for _, item := range r.OrderData {
		parts = append(parts, item.ProductID, item.Price.String(), strconv.Itoa(item.Quantity))
	}
	return crypt.Hash(parts...)
}

// CheckoutResult is returned to the client after initiating a payment.
type CheckoutResult struct {
	OrderID     string               `json:"orderId"`
	Provider    string               `json:"provider"`
	IntentID    string               `json:"paymentIntentId"`
	ClientToken string               `json:"clientToken"`
	Total       decimal.Decimal      `json:"total"`
	Currency    string               `json:"currency"`
	Status      models.PaymentStatus `json:"paymentStatus"`
	// Replayed is true when an earlier attempt with the same key answered.
	Replayed bool `json:"replayed"`
}

type CheckoutConfig struct {
	Currency       string
	GatewayTimeout time.Duration
}

// CheckoutService creates Pending orders and opens payment intents for them.
type CheckoutService struct {
	orders   payment.OrderStore
	users    payment.UserDirectory
	gateways *payment.Registry
	box      *crypt.Box
	cfg      CheckoutConfig
}

func NewCheckoutService(orders payment.OrderStore, users payment.UserDirectory, gateways *payment.Registry, box *crypt.Box, cfg CheckoutConfig) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &CheckoutService{orders: orders, users: users, gateways: gateways, box: box, cfg: cfg}
}

// InitiatePayment persists a Pending order for the draft, then asks the
// provider for an intent and binds it to the order before returning.
//
// clientKey is the caller's Idempotency-Key; when empty a key is derived
// from the draft. A gateway failure leaves the order Pending without an
// intent, and a retry with the same key reuses it.
func (s *CheckoutService) InitiatePayment(ctx context.Context, userID, clientKey string, req CheckoutRequest) (*CheckoutResult, error) {
	log := logger.WithCtx(ctx)

	total, err := req.Validate()
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(req.Provider, "invalid").Inc()
		return nil, err
	}

	gw, err := s.gateways.Get(req.Provider)
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(req.Provider, "invalid").Inc()
		return nil, payment.Invalid("provider", "The selected provider is invalid.")
	}

	order, created, err := s.openOrder(ctx, userID, clientKey, req, total, models.MethodCard, gw.Name())
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(gw.Name(), "error").Inc()
		return nil, err
	}

	log = log.With("order_id", order.ID, "provider", gw.Name())

	if order.IntentID() != "" {
		res, err := s.replay(order)
		if err == nil {
			metrics.CheckoutTotal.WithLabelValues(gw.Name(), "replayed").Inc()
			log.Info("checkout replayed", "intent_id", order.IntentID())
		}
		return res, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	intent, err := gw.CreateIntent(callCtx, payment.IntentRequest{
		OrderID:        order.ID,
		Amount:         order.Total,
		Currency:       order.Currency,
		Email:          order.Email,
		Description:    "Order " + order.ID,
		IdempotencyKey: order.ID,
	})
	if err != nil {
		var gwErr *payment.GatewayError
		if !errors.As(err, &gwErr) {
			err = payment.NewGatewayError(gw.Name(), "create_intent", err)
		}
		metrics.CheckoutTotal.WithLabelValues(gw.Name(), "gateway_error").Inc()
		log.Warn("gateway rejected checkout, order stays pending", "error", err)
		return nil, err
	}

	enc, err := s.box.Encrypt(intent.ClientToken)
	if err != nil {
		return nil, fmt.Errorf("checkout: seal client token: %w", err)
	}

	bound, err := s.orders.UpsertByIntentID(ctx, order.ID, intent.ID, enc)
	if errors.Is(err, payment.ErrIntentConflict) && bound != nil && bound.IntentID() != "" {
		// A concurrent retry bound its intent first; answer with that one.
		log.Info("checkout raced, returning bound intent", "intent_id", bound.IntentID())
		return s.replay(bound)
	}
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(gw.Name(), "error").Inc()
		return nil, fmt.Errorf("checkout: bind intent: %w", err)
	}

	metrics.CheckoutTotal.WithLabelValues(gw.Name(), "created").Inc()
	log.Info("payment intent opened", "intent_id", intent.ID, "new_order", created)

	return &CheckoutResult{
		OrderID:     bound.ID,
		Provider:    gw.Name(),
		IntentID:    intent.ID,
		ClientToken: intent.ClientToken,
		Total:       bound.Total,
		Currency:    bound.Currency,
		Status:      bound.PaymentStatus,
	}, nil
}

// PlaceCashOrder records a cash-on-delivery order. No gateway is involved
// and the order stays Pending until it is settled out of band.
func (s *CheckoutService) PlaceCashOrder(ctx context.Context, userID, clientKey string, req CheckoutRequest) (*models.Order, bool, error) {
	total, err := req.Validate()
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues("cod", "invalid").Inc()
		return nil, false, err
	}

	order, created, err := s.openOrder(ctx, userID, clientKey, req, total, models.MethodCashOnDelivery, "")
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues("cod", "error").Inc()
		return nil, false, err
	}

	result := "created"
	if !created {
		result = "replayed"
	}
	metrics.CheckoutTotal.WithLabelValues("cod", result).Inc()
	logger.WithCtx(ctx).Info("cash order placed", "order_id", order.ID, "new_order", created)
	return order, created, nil
}

// openOrder creates the Pending order for this attempt or returns the one
// already stored under the same idempotency key.
func (s *CheckoutService) openOrder(ctx context.Context, userID, clientKey string, req CheckoutRequest, total decimal.Decimal, method models.PaymentMethod, provider string) (*models.Order, bool, error) {
	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	draft := func(key string) *models.Order {
		return &models.Order{
			ID:             uuid.NewString(),
			UserID:         user.ID,
			Email:          user.Email,
			FullName:       strings.TrimSpace(req.FullName),
			PhoneNumber:    strings.TrimSpace(req.PhoneNumber),
			Address:        strings.TrimSpace(req.Address),
			PaymentMethod:  method,
			PaymentStatus:  models.StatusPending,
			OrderData:      req.OrderData,
			Total:          total,
			Currency:       strings.ToLower(s.cfg.Currency),
			Provider:       provider,
			IdempotencyKey: key,
		}
	}

	if clientKey != "" {
		// Scope client keys per user so two users cannot collide.
		order, created, err := s.orders.CreateOrGet(ctx, draft(crypt.Hash("client", userID, clientKey)))
		if err != nil {
			return nil, false, err
		}
		if created {
			return order, true, nil
		}
		if !sameDraft(order, req, total, method, provider) {
			return nil, false, payment.ErrIdempotencyKeyMismatch
		}
		if order.PaymentStatus.Terminal() {
			return nil, false, payment.ErrIdempotencyKeyReused
		}
		return order, false, nil
	}

	base := req.fingerprint(userID, string(method), provider)
	for attempt := 0; attempt < maxDerivedAttempts; attempt++ {
		key := base
		if attempt > 0 {
			key = base + "#" + strconv.Itoa(attempt)
		}
		order, created, err := s.orders.CreateOrGet(ctx, draft(key))
		if err != nil {
			return nil, false, err
		}
		if created || !order.PaymentStatus.Terminal() {
			return order, created, nil
		}
	}
	return nil, false, fmt.Errorf("checkout: too many attempts for the same cart")
}

// sameDraft reports whether a stored order was opened from the same request.
func sameDraft(o *models.Order, req CheckoutRequest, total decimal.Decimal, method models.PaymentMethod, provider string) bool {
	if o.PaymentMethod != method || o.Provider != provider || !o.Total.Equal(total) {
		return false
	}
	if o.FullName != strings.TrimSpace(req.FullName) ||
		o.Address != strings.TrimSpace(req.Address) ||
		o.PhoneNumber != strings.TrimSpace(req.PhoneNumber) {
		return false
	}
	if len(o.OrderData) != len(req.OrderData) {
		return false
	}
	for i, item := range req.OrderData {
		stored := o.OrderData[i]
		if stored.ProductID != item.ProductID || stored.Quantity != item.Quantity || !stored.Price.Equal(item.Price) {
			return false
		}
	}
	return true
}

func (s *CheckoutService) replay(order *models.Order) (*CheckoutResult, error) {
	token, err := s.box.Decrypt(order.ClientTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("checkout: open client token for order %s: %w", order.ID, err)
	}
	return &CheckoutResult{
		OrderID:     order.ID,
		Provider:    order.Provider,
		IntentID:    order.IntentID(),
		ClientToken: token,
		Total:       order.Total,
		Currency:    order.Currency,
		Status:      order.PaymentStatus,
		Replayed:    true,
	}, nil
}
