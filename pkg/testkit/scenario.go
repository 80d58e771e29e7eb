// Package testkit runs JSON-described HTTP scenarios against a handler.
//
// A scenario file describes one request, the expected status, a subset of
// the expected JSON body, and canned answers for outbound calls made through
// pkg/http (payment gateways, the cart service):
//
//	{
//	  "name": "checkout opens a stripe intent",
//	  "requestMethod": "POST",
//	  "requestUrl": "/api/payments",
//	  "headers": {"Authorization": "Bearer {{token}}"},
//	  "requestBody": {"fullName": "Ada", "orderData": [{"productId": "p1", "price": 10, "qty": 2}]},
//	  "expectedCode": 201,
//	  "expectedBody": {"data": {"paymentIntentId": "pi_123"}},
//	  "outbound": [
//	    {"matchUrl": "https://api.stripe.test/v1/payment_intents", "statusCode": 200,
//	     "body": {"id": "pi_123", "client_secret": "pi_123_secret"}}
//	  ]
//	}
//
// "{{name}}" placeholders in headers, URL and body are filled from Vars.
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scenario is one request/response case.
type Scenario struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Method      string            `json:"requestMethod"`
	URL         string            `json:"requestUrl"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        json.RawMessage   `json:"requestBody,omitempty"`

	ExpectedCode int `json:"expectedCode"`
	// ExpectedBody is matched as a subset of the actual JSON response.
	ExpectedBody json.RawMessage `json:"expectedBody,omitempty"`

	Outbound []OutboundMock `json:"outbound,omitempty"`
	// StrictOutbound fails the scenario on any outbound call without a mock.
	StrictOutbound bool `json:"strictOutbound,omitempty"`
}

// OutboundMock answers outbound requests whose URL starts with MatchURL.
type OutboundMock struct {
	MatchURL   string          `json:"matchUrl"`
	Method     string          `json:"method,omitempty"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
	// Optional marks a mock that may legitimately go unused.
	Optional bool `json:"optional,omitempty"`
}

// Vars fills "{{key}}" placeholders.
type Vars map[string]string

func (v Vars) expand(s string) string {
	for key, value := range v {
		s = strings.ReplaceAll(s, "{{"+key+"}}", value)
	}
	return s
}

// Load reads a file holding one scenario object or an array of them.
func Load(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", path, err)
	}

	var list []*Scenario
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &list)
	} else {
		var one Scenario
		err = json.Unmarshal(data, &one)
		list = []*Scenario{&one}
	}
	if err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", path, err)
	}

	for i, s := range list {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("testkit: %s[%d]: %w", filepath.Base(path), i, err)
		}
	}
	return list, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.URL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.Method == "" {
		s.Method = "GET"
	}
	for i, m := range s.Outbound {
		if m.MatchURL == "" {
			return fmt.Errorf("outbound[%d].matchUrl is required", i)
		}
	}
	return nil
}
