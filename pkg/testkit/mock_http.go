package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport is an http.RoundTripper that serves OutboundMock entries.
//
// Install it on the shared client for the duration of a test:
//
//	mt := testkit.NewMockTransport(mocks, false)
//	checkouthttp.DefaultClient.Transport = mt
//	defer checkouthttp.ResetTransport()
type MockTransport struct {
	mu     sync.Mutex
	mocks  []OutboundMock
	calls  []int
	strict bool
	vars   Vars
}

func NewMockTransport(mocks []OutboundMock, strict bool) *MockTransport {
	return &MockTransport{mocks: mocks, calls: make([]int, len(mocks)), strict: strict}
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	url := req.URL.String()
	for i, m := range mt.mocks {
		if !strings.HasPrefix(url, mt.vars.expand(m.MatchURL)) {
			continue
		}
		if m.Method != "" && !strings.EqualFold(m.Method, req.Method) {
			continue
		}
		mt.calls[i]++
		return respond(req, m), nil
	}

	if mt.strict {
		return nil, fmt.Errorf("testkit: unexpected outbound %s %s", req.Method, url)
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":"no mock configured"}`)),
		Request:    req,
	}, nil
}

// Unused lists the non-optional mocks that were never hit.
func (mt *MockTransport) Unused() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var out []string
	for i, m := range mt.mocks {
		if mt.calls[i] == 0 && !m.Optional {
			out = append(out, m.MatchURL)
		}
	}
	return out
}

func respond(req *http.Request, m OutboundMock) *http.Response {
	code := m.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(m.Body)),
		Request:    req,
	}
}
