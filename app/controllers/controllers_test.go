package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/controllers"
	"github.com/shashiranjanraj/checkout/app/gateways"
	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/repositories"
	"github.com/shashiranjanraj/checkout/app/routes"
	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/auth"
	"github.com/shashiranjanraj/checkout/pkg/crypt"
	"github.com/shashiranjanraj/checkout/pkg/database"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/router"
	"github.com/shashiranjanraj/checkout/pkg/testkit"
)

const (
	stripeBase = "https://api.stripe.test"
	whsec      = "whsec_controller"
)

type cartMock struct {
	mock.Mock
}

func (m *cartMock) ResetCart(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type harness struct {
	handler http.Handler
	orders  *repositories.OrderRepository
	cart    *cartMock
	vars    testkit.Vars
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}))
	t.Cleanup(func() { database.Close(db) })

	users := repositories.NewUserRepository(db)
	for _, u := range []models.User{
		{ID: "u1", Name: "Ada", Email: "ada@example.com", Password: "x"},
		{ID: "u2", Name: "Grace", Email: "grace@example.com", Password: "x"},
	} {
		u := u
		require.NoError(t, users.Upsert(context.Background(), &u))
	}

	reg := payment.NewRegistry("stripe")
	reg.Register(gateways.NewStripe(gateways.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: whsec,
		APIBase:       stripeBase,
		Timeout:       time.Second,
	}))

	box, err := crypt.New("controller-test-key")
	require.NoError(t, err)

	orders := repositories.NewOrderRepository(db)
	cart := &cartMock{}
	checkout := services.NewCheckoutService(orders, users, reg, box, services.CheckoutConfig{Currency: "usd", GatewayTimeout: time.Second})
	reconciler := services.NewReconciler(orders, cart, time.Second)

	r := router.New()
	r.Use(middleware.Recovery)
	routes.RegisterAPI(r, routes.API{
		Checkout: controllers.NewCheckoutController(checkout),
		Orders:   controllers.NewOrderController(services.NewOrderService(orders)),
		Webhooks: controllers.NewWebhookController(reg, reconciler),
		Limiter:  middleware.NewLimiter(100, time.Minute),
	})

	vars := testkit.Vars{"stripe": stripeBase}
	for name, userID := range map[string]string{"token": "u1", "otherToken": "u2", "ghostToken": "ghost"} {
		tok, err := auth.GenerateToken(userID)
		require.NoError(t, err)
		vars[name] = tok
	}

	return &harness{handler: r.Handler(), orders: orders, cart: cart, vars: vars}
}

// checkout opens a Stripe intent for u1 through the API.
func (h *harness) checkout(t *testing.T, intentID string) string {
	t.Helper()
	rec := testkit.Run(t, h.handler, &testkit.Scenario{
		Name:         "checkout " + intentID,
		Method:       http.MethodPost,
		URL:          "/api/payments",
		Headers:      map[string]string{"Authorization": "Bearer {{token}}", controllers.IdempotencyHeader: intentID},
		Body:         json.RawMessage(`{"fullName":"Ada","address":"1 Main St","phoneNumber":"+1 555 0100","orderData":[{"productId":"p1","price":10,"qty":2}],"total":20}`),
		ExpectedCode: http.StatusCreated,
		Outbound: []testkit.OutboundMock{{
			MatchURL: stripeBase + "/v1/payment_intents",
			Body:     json.RawMessage(`{"id":"` + intentID + `","client_secret":"` + intentID + `_secret"}`),
		}},
	}, h.vars)

	var body struct {
		Data services.CheckoutResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data.OrderID
}

func (h *harness) webhook(provider, signature, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+provider, strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

var anyArg = mock.Anything

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }

func stripeEvent(eventType, intentID string) string {
	return `{"id":"evt_1","type":"` + eventType + `","data":{"object":{"id":"` + intentID + `","object":"payment_intent"}}}`
}

func sign(payload string) string {
	return gateways.SignStripePayload([]byte(payload), whsec, time.Now())
}
