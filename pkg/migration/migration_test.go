package migration_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shashiranjanraj/checkout/pkg/migration"
)

type widget struct {
	ID   uint
	Name string
}

type createWidgets struct{}

func (createWidgets) Up(db *gorm.DB) error   { return db.AutoMigrate(&widget{}) }
func (createWidgets) Down(db *gorm.DB) error { return db.Migrator().DropTable(&widget{}) }

type addIndex struct{}

func (addIndex) Up(db *gorm.DB) error {
	return db.Exec("CREATE INDEX idx_widgets_name ON widgets(name)").Error
}
func (addIndex) Down(db *gorm.DB) error {
	return db.Exec("DROP INDEX idx_widgets_name").Error
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "m.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestRunRollbackStatus(t *testing.T) {
	db := openDB(t)
	var out bytes.Buffer
	r := migration.New(db, &out,
		migration.Entry{Name: "20260102000000_add_index", Migration: addIndex{}},
		migration.Entry{Name: "20260101000000_create_widgets", Migration: createWidgets{}},
	)

	pending, err := r.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"20260101000000_create_widgets", "20260102000000_add_index"}, pending)

	require.NoError(t, r.Run())
	assert.True(t, db.Migrator().HasTable(&widget{}))

	pending, err = r.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	out.Reset()
	require.NoError(t, r.Run())
	assert.Contains(t, out.String(), "Nothing to migrate.")

	require.NoError(t, r.Rollback())
	assert.False(t, db.Migrator().HasTable(&widget{}))

	out.Reset()
	require.NoError(t, r.Status())
	assert.Contains(t, out.String(), "Pending")
	assert.NotContains(t, out.String(), "Ran ")
}
