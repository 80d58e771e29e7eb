// Package bootstrap wires the checkout service from configuration: stores,
// gateways, services, controllers, queue and scheduler.
package bootstrap

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/repositories"
	"github.com/shashiranjanraj/checkout/app/repositories/mongorepo"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/pkg/database"
	"github.com/shashiranjanraj/checkout/pkg/logger"
)

// UserStore resolves checkout callers and accepts seeded users.
type UserStore interface {
	payment.UserDirectory
	Upsert(ctx context.Context, u *models.User) error
}

// Stores is the persistence layer selected by DB_DRIVER.
type Stores struct {
	Driver string
	Orders payment.OrderStore
	Users  UserStore

	// DB is nil when DB_DRIVER=mongo.
	DB *gorm.DB

	close func() error
}

// OpenStores connects to the configured database.
func OpenStores(ctx context.Context) (*Stores, error) {
	driver := config.DatabaseDriver()
	if driver == "mongo" {
		return openMongo(ctx)
	}

	db, err := database.Connect()
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "driver", driver)

	return &Stores{
		Driver: driver,
		Orders: repositories.NewOrderRepository(db),
		Users:  repositories.NewUserRepository(db),
		DB:     db,
		close:  func() error { return database.Close(db) },
	}, nil
}

func openMongo(ctx context.Context) (*Stores, error) {
	client, err := mongorepo.Connect(ctx, config.MongoURI())
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "driver", "mongo", "database", config.MongoDatabase())

	orders := mongorepo.NewOrderStore(client, config.MongoDatabase())
	if err := orders.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("bootstrap: mongo indexes: %w", err)
	}

	return &Stores{
		Driver: "mongo",
		Orders: orders,
		Users:  mongorepo.NewUserStore(client, config.MongoDatabase()),
		close:  func() error { return client.Disconnect(context.Background()) },
	}, nil
}

// Ping is the readiness probe for /healthz and gRPC health.
func (s *Stores) Ping(ctx context.Context) error {
	return s.Orders.Ping(ctx)
}

func (s *Stores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
