// Package migrations holds the schema history of the checkout service, in
// the order the runner applies it.
package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/pkg/migration"
	"github.com/shashiranjanraj/checkout/pkg/queue"
)

// All returns every migration. Names are timestamp-prefixed and never reused.
func All() []migration.Entry {
	return []migration.Entry{
		{Name: "20260101000000_create_users_table", Migration: createUsersTable{}},
		{Name: "20260101000001_create_orders_table", Migration: createOrdersTable{}},
		{Name: "20260115000000_create_failed_jobs_table", Migration: createFailedJobsTable{}},
		{Name: "20260201000000_filter_orders_intent_index", Migration: filterOrdersIntentIndex{}},
	}
}

// -------- users --------

type createUsersTable struct{}

func (createUsersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{})
}

func (createUsersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.User{})
}

// -------- orders --------

// The unique indexes on idempotency_key and intent_id are what make order
// creation and intent binding idempotent under concurrent retries.
type createOrdersTable struct{}

func (createOrdersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{})
}

func (createOrdersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Order{})
}

// -------- failed_jobs --------

type createFailedJobsTable struct{}

func (createFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (createFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&queue.FailedJobRecord{})
}

// -------- orders.payment_intent_id --------

// SQL Server counts NULLs as equal in a unique index, so a plain index on
// payment_intent_id admits only one order still waiting for its intent.
// Other dialects already ignore NULLs and are left alone.
type filterOrdersIntentIndex struct{}

const intentIndex = "idx_orders_payment_intent_id"

func (filterOrdersIntentIndex) Up(db *gorm.DB) error {
	return execAll(db, intentIndexSQL(db.Dialector.Name(), true))
}

func (filterOrdersIntentIndex) Down(db *gorm.DB) error {
	return execAll(db, intentIndexSQL(db.Dialector.Name(), false))
}

// intentIndexSQL rebuilds the intent index, filtered to non-NULL rows when
// filtered is set.
func intentIndexSQL(dialect string, filtered bool) []string {
	if dialect != "sqlserver" {
		return nil
	}
	create := "CREATE UNIQUE INDEX " + intentIndex + " ON orders (payment_intent_id)"
	if filtered {
		create += " WHERE payment_intent_id IS NOT NULL"
	}
	return []string{"DROP INDEX " + intentIndex + " ON orders", create}
}

func execAll(db *gorm.DB, stmts []string) error {
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
