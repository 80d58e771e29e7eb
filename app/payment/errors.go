package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrOrderNotFound means no order matches the given id or intent id.
	ErrOrderNotFound = errors.New("payment: order not found")

	// ErrStatusConflict is returned by compare-and-set when the stored status
	// no longer matches the expected one. Callers re-read and decide.
	ErrStatusConflict = errors.New("payment: status changed concurrently")

	// ErrInvalidTransition rejects any move other than Pending → terminal.
	ErrInvalidTransition = errors.New("payment: invalid status transition")

	// ErrIntentConflict means the order already carries a different intent id.
	ErrIntentConflict = errors.New("payment: order already bound to another intent")

	ErrUserNotFound         = errors.New("payment: user not found")
	ErrIdempotencyKeyReused = errors.New("payment: idempotency key already used by a completed order")
	ErrUnknownProvider      = errors.New("payment: unknown provider")
	ErrTimeout              = errors.New("payment: outbound call timed out")

	// ErrIdempotencyKeyMismatch means the key was first sent with a
	// different payment method, provider or draft.
	ErrIdempotencyKeyMismatch = errors.New("payment: idempotency key reused with a different request")
)

// ValidationError carries field-level problems with a checkout request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "payment: validation failed: " + strings.Join(parts, "; ")
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// GatewayError wraps a failed call to an upstream payment provider.
type GatewayError struct {
	Provider string
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment: %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Timeout reports whether the call exceeded its bounded wait.
func (e *GatewayError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}

// NewGatewayError wraps err, folding context deadlines into ErrTimeout.
func NewGatewayError(provider, op string, err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &GatewayError{Provider: provider, Op: op, Err: err}
}

// SignatureError rejects a webhook whose authenticity could not be proven.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "payment: webhook signature rejected: " + e.Reason
}
