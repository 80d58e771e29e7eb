package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	checkouthttp "github.com/shashiranjanraj/checkout/pkg/http"
)

// RunDir runs every scenario in dir/*.json as a subtest. Scenarios share
// handler, so files run in name order and may depend on earlier ones.
func RunDir(t *testing.T, handler http.Handler, dir string, vars Vars) {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) == 0 {
		t.Fatalf("testkit: no scenario files in %q", dir)
	}

	for _, path := range files {
		scenarios, err := Load(path)
		if err != nil {
			t.Errorf("%v", err)
			continue
		}
		for _, s := range scenarios {
			t.Run(s.Name, func(t *testing.T) {
				Run(t, handler, s, vars)
			})
		}
	}
}

// Run fires s against handler with outbound calls served by its mocks.
// It returns the recorder for further assertions.
func Run(t *testing.T, handler http.Handler, s *Scenario, vars Vars) *httptest.ResponseRecorder {
	t.Helper()

	mt := NewMockTransport(s.Outbound, s.StrictOutbound)
	mt.vars = vars
	checkouthttp.DefaultClient.Transport = mt
	defer checkouthttp.ResetTransport()

	var body io.Reader
	if len(s.Body) > 0 {
		body = bytes.NewReader([]byte(vars.expand(string(s.Body))))
	}

	req := httptest.NewRequest(strings.ToUpper(s.Method), vars.expand(s.URL), body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, vars.expand(v))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, s.ExpectedCode, rec.Code, "[%s] status code\nbody: %s", s.Name, rec.Body.String())
	if len(s.ExpectedBody) > 0 {
		AssertJSONSubset(t, []byte(vars.expand(string(s.ExpectedBody))), rec.Body.Bytes(), "[%s]", s.Name)
	}
	for _, url := range mt.Unused() {
		assert.Fail(t, "outbound mock never called: "+url, "[%s]", s.Name)
	}
	return rec
}
