// Package validate checks struct fields against rules declared in a
// `validate` tag.
//
// Supported rules (comma-separated):
//
//	required      field must not be zero/empty
//	nullable      if empty, skip the remaining rules for this field
//	email         valid email address
//	phone         digits with optional leading +, spaces, dashes or parentheses
//	min=N         string: min char length | number: min value | slice: min items
//	max=N         string: max char length | number: max value | slice: max items
//	gt=N          number > N
//	gte=N         number >= N
//	in=a b c      value must be one of the space-separated items
//	dive          validate every struct element of a slice
//
// Numbers include any type with a String() that parses as a float, so
// decimal.Decimal amounts can carry gt/gte rules.
//
// Example:
//
//	type Item struct {
//	    Qty int `json:"qty" validate:"required,gt=0"`
//	}
//	type Input struct {
//	    Phone string `json:"phoneNumber" validate:"required,phone"`
//	    Items []Item `json:"orderData"   validate:"required,min=1,dive"`
//	}
//
// Errors are keyed by JSON path, e.g. "orderData[1].qty".
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Struct validates all exported fields of v that carry a `validate` tag.
// Returns a map of field path → error message; empty map means no errors.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	walk(reflect.ValueOf(v), "", errs)
	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func walk(rv reflect.Value, prefix string, errs map[string]string) {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		value := rv.Field(i)
		name := prefix + jsonFieldName(field)
		rules := strings.Split(tag, ",")

		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}

		failed := false
		for _, rule := range rules {
			rule = strings.TrimSpace(rule)
			if rule == "nullable" || rule == "dive" {
				continue
			}
			if msg := applyRule(rule, name, value); msg != "" {
				errs[name] = msg
				failed = true
				break
			}
		}

		if !failed && hasRule(rules, "dive") && value.Kind() == reflect.Slice {
			for j := 0; j < value.Len(); j++ {
				walk(value.Index(j), fmt.Sprintf("%s[%d].", name, j), errs)
			}
		}
	}
}

func applyRule(rule, field string, v reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}
	case "email":
		if !emailRE.MatchString(stringOf(v)) {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}
	case "phone":
		if !phoneRE.MatchString(stringOf(v)) {
			return fmt.Sprintf("The %s must be a valid phone number.", field)
		}
	case "min", "max":
		n := mustParseFloat(param)
		size, unit := measure(v)
		if key == "min" && size < n {
			return fmt.Sprintf("The %s must be at least %s%s.", field, param, unit)
		}
		if key == "max" && size > n {
			return fmt.Sprintf("The %s must not be greater than %s%s.", field, param, unit)
		}
	case "gt":
		f, ok := toFloat(v)
		if !ok || f <= mustParseFloat(param) {
			return fmt.Sprintf("The %s must be greater than %s.", field, param)
		}
	case "gte":
		f, ok := toFloat(v)
		if !ok || f < mustParseFloat(param) {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
	case "in":
		raw := stringOf(v)
		for _, allowed := range strings.Fields(param) {
			if raw == allowed {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	}

	return ""
}

var (
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRE = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,20}$`)
)

type zeroer interface{ IsZero() bool }

func isEmpty(v reflect.Value) bool {
	if z, ok := v.Interface().(zeroer); ok && v.Kind() == reflect.Struct {
		return z.IsZero()
	}
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	}
	return v.IsZero()
}

// measure returns the value used by min/max and the unit for the message.
func measure(v reflect.Value) (float64, string) {
	switch v.Kind() {
	case reflect.String:
		return float64(len([]rune(v.String()))), " characters"
	case reflect.Slice, reflect.Map, reflect.Array:
		return float64(v.Len()), " items"
	}
	f, _ := toFloat(v)
	return f, ""
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	f, err := strconv.ParseFloat(stringOf(v), 64)
	return f, err == nil
}

func stringOf(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}

func mustParseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func jsonFieldName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if name == "" || name == "-" {
		return f.Name
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = name[:idx]
	}
	return name
}

func hasRule(rules []string, target string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == target {
			return true
		}
	}
	return false
}
