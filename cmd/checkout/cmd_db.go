package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/database/migrations"
	"github.com/shashiranjanraj/checkout/database/seeders"
	"github.com/shashiranjanraj/checkout/internal/bootstrap"
	"github.com/shashiranjanraj/checkout/pkg/migration"
)

var errMongoMigrations = errors.New("DB_DRIVER=mongo has no migration history; indexes are ensured on connect")

// withStores loads config, opens the configured stores and runs fn.
func withStores(fn func(ctx context.Context, s *bootstrap.Stores) error) error {
	if err := config.Load(); err != nil {
		return err
	}
	ctx := context.Background()

	stores, err := bootstrap.OpenStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(ctx, stores)
}

func runner(s *bootstrap.Stores) (*migration.Runner, error) {
	if s.DB == nil {
		return nil, errMongoMigrations
	}
	return migration.New(s.DB, os.Stdout, migrations.All()...), nil
}

// checkout migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, s *bootstrap.Stores) error {
			if s.DB == nil {
				fmt.Println("mongo: indexes ensured")
				return nil
			}
			r, _ := runner(s)
			fmt.Println("Running migrations…")
			return r.Run()
		})
	},
}

// checkout migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, s *bootstrap.Stores) error {
			r, err := runner(s)
			if err != nil {
				return err
			}
			fmt.Println("Rolling back last batch…")
			return r.Rollback()
		})
	},
}

// checkout migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, s *bootstrap.Stores) error {
			r, err := runner(s)
			if err != nil {
				return err
			}
			return r.Status()
		})
	},
}

// checkout seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, s *bootstrap.Stores) error {
			fmt.Println("Running seeders…")
			return seeders.RunAll(ctx, s.Users, os.Stdout)
		})
	},
}
