package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/pkg/http"
	"github.com/shashiranjanraj/checkout/pkg/logger"
)

// HTTPCartResetter calls the cart service's reset endpoint:
//
//	POST {base}/api/carts/{userId}/reset
type HTTPCartResetter struct {
	baseURL string
	token   string
	timeout time.Duration
}

var _ payment.CartResetter = (*HTTPCartResetter)(nil)

func NewHTTPCartResetter(baseURL, token string, timeout time.Duration) *HTTPCartResetter {
	return &HTTPCartResetter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

func (c *HTTPCartResetter) ResetCart(ctx context.Context, userID string) error {
	req := http.Post(c.baseURL+"/api/carts/"+url.PathEscape(userID)+"/reset").
		WithContext(ctx).
		Timeout(c.timeout).
		Retry(2, 100*time.Millisecond)
	if c.token != "" {
		req.Bearer(c.token)
	}

	resp, err := req.Send()
	if err != nil {
		return fmt.Errorf("cart: reset %s: %w", userID, err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("cart: reset %s: %w", userID, err)
	}
	return nil
}

// LogCartResetter stands in when no cart service is configured.
type LogCartResetter struct{}

func (LogCartResetter) ResetCart(ctx context.Context, userID string) error {
	logger.WithCtx(ctx).Warn("cart service not configured, skipping reset", "user_id", userID)
	return nil
}

// CartResetterFromConfig picks the HTTP client when CART_SERVICE_URL is set.
func CartResetterFromConfig() payment.CartResetter {
	if base := config.CartServiceURL(); base != "" {
		return NewHTTPCartResetter(base, config.CartServiceToken(), config.CartResetTimeout())
	}
	return LogCartResetter{}
}
