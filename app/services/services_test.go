package services_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/repositories"
	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/crypt"
	"github.com/shashiranjanraj/checkout/pkg/database"
)

// fakeGateway hands out pi_1, pi_2, ... and can be told to fail.
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
	last  payment.IntentRequest
}

func (g *fakeGateway) Name() string            { return "fake" }
func (g *fakeGateway) SignatureHeader() string { return "X-Fake-Signature" }
func (g *fakeGateway) WebhookSecret() string   { return "fake_secret" }

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return payment.Intent{}, g.err
	}
	return payment.Intent{
		ID:          fmt.Sprintf("pi_%d", g.calls),
		ClientToken: fmt.Sprintf("pi_%d_secret", g.calls),
	}, nil
}

func (g *fakeGateway) VerifyWebhook([]byte, string, string) (payment.VerifiedEvent, error) {
	return payment.VerifiedEvent{}, errors.New("not used")
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type cartMock struct {
	mock.Mock
}

func (m *cartMock) ResetCart(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type env struct {
	orders     *repositories.OrderRepository
	gateway    *fakeGateway
	cart       *cartMock
	checkout   *services.CheckoutService
	reconciler *services.Reconciler
}

func setup(t *testing.T) *env {
	t.Helper()

	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}))
	t.Cleanup(func() { database.Close(db) })

	users := repositories.NewUserRepository(db)
	require.NoError(t, users.Upsert(context.Background(), &models.User{
		ID: "u1", Name: "Ada", Email: "ada@example.com", Password: "x",
	}))

	box, err := crypt.New("test-app-key")
	require.NoError(t, err)

	gw := &fakeGateway{}
	reg := payment.NewRegistry("fake")
	reg.Register(gw)

	orders := repositories.NewOrderRepository(db)
	cart := &cartMock{}

	return &env{
		orders:     orders,
		gateway:    gw,
		cart:       cart,
		checkout:   services.NewCheckoutService(orders, users, reg, box, services.CheckoutConfig{Currency: "usd", GatewayTimeout: time.Second}),
		reconciler: services.NewReconciler(orders, cart, time.Second),
	}
}

func draft() services.CheckoutRequest {
	return services.CheckoutRequest{
		FullName:    "Ada Lovelace",
		Address:     "1 Main St",
		PhoneNumber: "+1 555 0100",
		OrderData: models.OrderData{
			{ProductID: "p1", Price: decimal.NewFromInt(10), Quantity: 2},
		},
		Total: decimal.NewFromInt(20),
	}
}
