package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// filterableKeys lists the metadata keys a Filter may reference.
var filterableKeys = map[string]bool{
	MetaWorkbookID:    true,
	MetaSheetName:     true,
	MetaSectionLabel:  true,
	MetaRowNumber:     true,
	MetaColumnHeaders: true,
	MetaLevel:         true,
	MetaCreatedAt:     true,
}

// Filter is an exact-match predicate over chunk metadata.
// All entries must match (logical AND). A nil or empty Filter matches everything.
type Filter map[string]any

// Validate checks that every key is filterable and every value is a scalar.
func (f Filter) Validate() error {
	for _, key := range f.keys() {
		if !filterableKeys[key] {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidFilter, key)
		}
		v := f[key]
		if !isScalar(v) {
			return fmt.Errorf("%w: value for %q must be a scalar, got %T", ErrInvalidFilter, key, v)
		}
		if key == MetaLevel {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("%w: level must be a string", ErrInvalidFilter)
			}
			if _, ok := ParseLevel(s); !ok {
				return fmt.Errorf("%w: unknown level %q", ErrInvalidFilter, s)
			}
		}
	}
	return nil
}

// Match reports whether the chunk satisfies every predicate.
func (f Filter) Match(c *Chunk) bool {
	for key, want := range f {
		if key == MetaLevel {
			s, _ := want.(string)
			if c.Level.String() != s {
				return false
			}
			continue
		}
		got, ok := c.Metadata[key]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

// String renders the filter deterministically, for logs.
func (f Filter) String() string {
	if len(f) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(f))
	for _, k := range f.keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (f Filter) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64, time.Time:
		return true
	default:
		return false
	}
}

// scalarEqual compares scalars, treating all numeric kinds as float64 so that
// values decoded from JSON compare equal to the ints the builder produced.
func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	ta, aTime := asTime(a)
	tb, bTime := asTime(b)
	if aTime && bTime {
		return ta.Equal(tb)
	}
	return a == b
}

// asTime accepts a time.Time or an RFC 3339 string, the form created_at
// is stored in.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
