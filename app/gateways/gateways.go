// Package gateways implements payment.Gateway for each supported provider.
package gateways

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/config"
)

// FromConfig registers every provider whose secret key is configured.
func FromConfig() *payment.Registry {
	reg := payment.NewRegistry(config.PaymentProvider())

	if key := config.StripeSecretKey(); key != "" {
		reg.Register(NewStripe(StripeConfig{
			SecretKey:     key,
			WebhookSecret: config.StripeWebhookSecret(),
			APIBase:       config.StripeAPIBase(),
			Timeout:       config.GatewayTimeout(),
		}))
	}
	if key := config.SafepayAPIKey(); key != "" {
		reg.Register(NewSafepay(SafepayConfig{
			APIKey:        key,
			WebhookSecret: config.SafepayWebhookSecret(),
			APIBase:       config.SafepayAPIBase(),
			CheckoutURL:   config.SafepayCheckoutURL(),
			Environment:   safepayEnvironment(config.AppEnv()),
			Timeout:       config.GatewayTimeout(),
		}))
	}
	if key := config.TwoCheckoutSecretKey(); key != "" {
		reg.Register(NewTwoCheckout(TwoCheckoutConfig{
			MerchantCode:  config.TwoCheckoutMerchantCode(),
			SecretKey:     key,
			WebhookSecret: config.TwoCheckoutWebhookSecret(),
			APIBase:       config.TwoCheckoutAPIBase(),
			Timeout:       config.GatewayTimeout(),
		}))
	}

	return reg
}

// SignPayload returns the signature header gw expects on a webhook carrying
// payload, signed with the gateway's configured secret.
func SignPayload(gw payment.Gateway, payload []byte, at time.Time) (header, value string) {
	if _, ok := gw.(*Stripe); ok {
		return gw.SignatureHeader(), SignStripePayload(payload, gw.WebhookSecret(), at)
	}
	return gw.SignatureHeader(), hmacHex(gw.WebhookSecret(), payload)
}

func safepayEnvironment(appEnv string) string {
	if appEnv == "production" || appEnv == "prod" {
		return "production"
	}
	return "sandbox"
}

func hmacHex(secret string, parts ...[]byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyHexHMAC checks a hex HMAC-SHA256 of the raw body in constant time.
func verifyHexHMAC(payload []byte, signature, secret string) error {
	if secret == "" {
		return &payment.SignatureError{Reason: "webhook secret not configured"}
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return &payment.SignatureError{Reason: "missing signature header"}
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return &payment.SignatureError{Reason: "malformed signature"}
	}
	want, _ := hex.DecodeString(hmacHex(secret, payload))
	if !hmac.Equal(got, want) {
		return &payment.SignatureError{Reason: "signature mismatch"}
	}
	return nil
}

// minorUnits converts an amount to the smallest currency unit, rounding
// half away from zero.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
