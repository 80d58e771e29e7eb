package testkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertJSONSubset fails unless every field in expected is present in
// actual with an equal value. Arrays must match in length.
func AssertJSONSubset(t *testing.T, expected, actual []byte, msgAndArgs ...interface{}) bool {
	t.Helper()

	var exp, act interface{}
	if err := json.Unmarshal(expected, &exp); err != nil {
		return assert.Fail(t, "expected body is not valid JSON: "+err.Error(), msgAndArgs...)
	}
	if err := json.Unmarshal(actual, &act); err != nil {
		return assert.Fail(t, fmt.Sprintf("response is not valid JSON: %v\nbody: %s", err, actual), msgAndArgs...)
	}

	if diffs := subsetDiff("", exp, act); len(diffs) > 0 {
		return assert.Fail(t, "response body mismatch:\n"+strings.Join(diffs, "\n")+"\nbody: "+string(actual), msgAndArgs...)
	}
	return true
}

func subsetDiff(path string, expected, actual interface{}) []string {
	var diffs []string
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return []string{fmt.Sprintf("  %s: expected object, got %T", keyPath(path), actual)}
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists {
				diffs = append(diffs, fmt.Sprintf("  %s.%s: missing", keyPath(path), k))
				continue
			}
			diffs = append(diffs, subsetDiff(path+"."+k, ev, av)...)
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return []string{fmt.Sprintf("  %s: expected array, got %T", keyPath(path), actual)}
		}
		if len(exp) != len(act) {
			return []string{fmt.Sprintf("  %s: length expected=%d actual=%d", keyPath(path), len(exp), len(act))}
		}
		for i := range exp {
			diffs = append(diffs, subsetDiff(fmt.Sprintf("%s[%d]", path, i), exp[i], act[i])...)
		}
	default:
		if fmt.Sprintf("%v", expected) != fmt.Sprintf("%v", actual) {
			diffs = append(diffs, fmt.Sprintf("  %s:\n    - %v\n    + %v", keyPath(path), expected, actual))
		}
	}
	return diffs
}

func keyPath(path string) string {
	if path == "" {
		return "root"
	}
	return strings.TrimPrefix(path, ".")
}
