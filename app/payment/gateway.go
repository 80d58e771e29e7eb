// Package payment holds the contracts shared by every payment provider and the
// order reconciliation flow: the Gateway capability interface, the typed
// webhook event, and the error taxonomy.
package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/checkout/app/models"
)

// Outcome is what a gateway reports about an intent.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	// OutcomeIgnored marks events that must not drive a transition.
	OutcomeIgnored Outcome = "ignored"
)

// Status maps a terminal outcome to the order status it produces.
// ok is false for OutcomeIgnored and unknown values.
func (o Outcome) Status() (status models.PaymentStatus, ok bool) {
	switch o {
	case OutcomeSucceeded:
		return models.StatusPaid, true
	case OutcomeFailed:
		return models.StatusFailed, true
	case OutcomeCanceled:
		return models.StatusCanceled, true
	default:
		return "", false
	}
}

// VerifiedEvent is a webhook whose signature has been checked.
type VerifiedEvent struct {
	ID              string
	EventType       string
	GatewayIntentID string
	Outcome         Outcome
}

// IntentRequest is what the checkout flow asks a provider to open.
type IntentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	Description string
	// IdempotencyKey is forwarded to providers that support it so a retried
	// checkout never opens a second intent upstream.
	IdempotencyKey string
}

// Intent is the provider's answer to IntentRequest.
type Intent struct {
	// ID is the gateway-assigned intent identifier, the webhook join key.
	ID string
	// ClientToken is a client secret or hosted checkout URL.
	ClientToken string
}

// Gateway is implemented by every payment provider.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	// SignatureHeader names the HTTP header carrying the webhook signature.
	SignatureHeader() string
	// VerifyWebhook checks signature against the exact raw payload bytes
	// before parsing anything.
	VerifyWebhook(payload []byte, signature, secret string) (VerifiedEvent, error)
	// WebhookSecret is the shared secret configured for this provider.
	WebhookSecret() string
}

// StatusFetcher is implemented by providers that can be polled for an
// intent's outcome. Used to sync orders whose webhook never arrived.
type StatusFetcher interface {
	FetchOutcome(ctx context.Context, intentID string) (Outcome, error)
}

// Registry maps provider names to gateways.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
	fallback string
}

// NewRegistry creates a registry whose default provider is fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{gateways: map[string]Gateway{}, fallback: fallback}
}

// Register adds g under g.Name().
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

// Get returns the named gateway; an empty name selects the default.
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.fallback
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return g, nil
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
