package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/checkout/app/controllers"
	"github.com/shashiranjanraj/checkout/app/gateways"
	"github.com/shashiranjanraj/checkout/app/jobs"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/repositories/mongorepo"
	"github.com/shashiranjanraj/checkout/app/routes"
	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/internal/kernel"
	"github.com/shashiranjanraj/checkout/pkg/crypt"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/queue"
	"github.com/shashiranjanraj/checkout/pkg/schedule"
)

// App is the fully wired service.
type App struct {
	Stores     *Stores
	Gateways   *payment.Registry
	Reconciler *services.Reconciler
	Checkout   *services.CheckoutService
	Orders     *services.OrderService
	Queue      *queue.Manager
	Limiter    *middleware.Limiter
	Kernel     *kernel.HTTPKernel

	redis   *redis.Client
	logSink func()
}

// New connects the stores and the queue backend and builds every component.
func New(ctx context.Context) (*App, error) {
	stores, err := OpenStores(ctx)
	if err != nil {
		return nil, err
	}

	app, err := Build(stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	if err := app.attachLogSink(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.openQueue(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Build wires services and controllers over already-open stores. The queue
// is left nil; New attaches it.
func Build(stores *Stores) (*App, error) {
	box, err := crypt.New(config.AppKey())
	if err != nil {
		return nil, err
	}

	reg := gateways.FromConfig()
	if len(reg.Names()) == 0 {
		logger.Warn("no payment provider configured; card checkout will be rejected")
	}

	reconciler := services.NewReconciler(stores.Orders, services.CartResetterFromConfig(), config.CartResetTimeout())
	checkout := services.NewCheckoutService(stores.Orders, stores.Users, reg, box, services.CheckoutConfig{
		Currency:       config.PaymentCurrency(),
		GatewayTimeout: config.GatewayTimeout(),
	})
	orders := services.NewOrderService(stores.Orders)
	limiter := middleware.NewLimiter(config.CheckoutRateLimit(), time.Minute)

	api := routes.API{
		Checkout: controllers.NewCheckoutController(checkout),
		Orders:   controllers.NewOrderController(orders),
		Webhooks: controllers.NewWebhookController(reg, reconciler),
		Limiter:  limiter,
	}

	return &App{
		Stores:     stores,
		Gateways:   reg,
		Reconciler: reconciler,
		Checkout:   checkout,
		Orders:     orders,
		Limiter:    limiter,
		Kernel:     kernel.NewHTTPKernel(api, stores.Ping),
	}, nil
}

// attachLogSink mirrors logs into MongoDB when LOG_SINK=mongo.
func (a *App) attachLogSink(ctx context.Context) error {
	if config.LogSink() != "mongo" {
		return nil
	}
	client, err := mongorepo.Connect(ctx, config.MongoURI())
	if err != nil {
		return fmt.Errorf("bootstrap: log sink: %w", err)
	}
	col := client.Database(config.MongoDatabase()).Collection(config.LogCollection())
	if err := logger.EnsureLogIndexes(ctx, col); err != nil {
		logger.Warn("log sink indexes not created", "error", err)
	}

	sink := logger.NewMongoSink(col, logger.ParseLevel(config.LogSinkLevel()))
	logger.AttachSink(sink)
	a.logSink = func() {
		sink.Close()
		_ = client.Disconnect(context.Background())
	}
	logger.Info("log sink attached", "collection", config.LogCollection())
	return nil
}

func (a *App) openQueue(ctx context.Context) error {
	var driver queue.Driver
	switch config.QueueDriver() {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("bootstrap: redis: %w", err)
		}
		driver = queue.NewRedisDriver(a.redis)
	default:
		driver = queue.NewMemoryDriver()
	}

	var opts []queue.Option
	if a.Stores.DB != nil {
		opts = append(opts, queue.WithFailedStore(a.Stores.DB))
	}
	a.Queue = queue.New(driver, opts...)
	jobs.Register(a.Queue, &jobs.SyncDeps{Gateways: a.Gateways, Reconciler: a.Reconciler})
	return nil
}

// Scheduler returns the periodic stale order sweep.
func (a *App) Scheduler() *schedule.Scheduler {
	s := schedule.New()
	sweeper := jobs.NewSweeper(a.Stores.Orders, a.Gateways, a.Queue, config.SyncStaleAfter()).
		WithHorizon(config.SyncAbandonAfter())
	s.Every(config.SyncInterval()).Name("sync-stale-orders").WithoutOverlapping().Run(sweeper.Run)
	return s
}

// InProcessWorkers reports whether queue workers must run inside the serve
// process. The memory queue is not shared across processes.
func (a *App) InProcessWorkers() bool {
	return config.QueueDriver() == "memory"
}

func (a *App) Close() error {
	var errs []error
	if a.logSink != nil {
		a.logSink()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Stores.Close())
	return errors.Join(errs...)
}
