package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/services"
)

func TestHTTPCartResetter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer cart-token", r.Header.Get("Authorization"))
		if r.URL.Path == "/api/carts/u1/reset" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := services.NewHTTPCartResetter(srv.URL+"/", "cart-token", time.Second)
	require.NoError(t, c.ResetCart(context.Background(), "u1"))
	assert.Error(t, c.ResetCart(context.Background(), "u2"))
}

func TestLogCartResetterNeverFails(t *testing.T) {
	assert.NoError(t, services.LogCartResetter{}.ResetCart(context.Background(), "u1"))
}
