// Package coerce converts loosely typed configuration values. TOML yields
// int64 and float64, tests set Go ints, and environment overrides arrive
// as strings; every config store reads them through these helpers.
package coerce

import (
	"strconv"
	"strings"
)

// String returns v if it is a string, otherwise "".
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int converts integers, whole floats and numeric strings. Anything else is 0.
func Int(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case int32:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float converts floats, integers and numeric strings. Anything else is 0.
func Float(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Bool converts booleans and strconv.ParseBool strings. Anything else is false.
func Bool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		return false
	}
}

// StringSlice converts []string, []any of strings, and comma-separated
// strings. Non-string elements are skipped.
func StringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		parts := strings.Split(x, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}
