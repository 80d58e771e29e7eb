package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/repositories"
	"github.com/shashiranjanraj/checkout/pkg/database"
	"github.com/shashiranjanraj/checkout/pkg/queue"
)

func sqliteStores(t *testing.T) *Stores {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}, &queue.FailedJobRecord{}))

	return &Stores{
		Driver: "sqlite",
		Orders: repositories.NewOrderRepository(db),
		Users:  repositories.NewUserRepository(db),
		DB:     db,
		close:  func() error { return database.Close(db) },
	}
}

func TestBuildWiresKernel(t *testing.T) {
	app, err := Build(sqliteStores(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	rec := httptest.NewRecorder()
	app.Kernel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Protected routes are mounted behind auth.
	rec = httptest.NewRecorder()
	app.Kernel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemoryQueueAndScheduler(t *testing.T) {
	app, err := Build(sqliteStores(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	require.NoError(t, app.openQueue(context.Background()))
	require.NotNil(t, app.Queue)
	assert.True(t, app.InProcessWorkers())
	tasks := app.Scheduler().List()
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0], "sync-stale-orders")
}
