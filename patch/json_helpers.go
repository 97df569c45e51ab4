package patch

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Normalize converts any JSON-serializable value into its generic form
// (map[string]any, []any, float64, string, bool, nil).
func Normalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64:
		return value, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	var normalized any
	err = json.Unmarshal(payload, &normalized)
	if err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return normalized, nil
}

// Clone deep-copies maps and slices of a generic JSON value.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(v))
		for k, item := range v {
			cloned[k] = Clone(item)
		}
		return cloned
	case []any:
		return cloneArray(v)
	case json.RawMessage:
		if v == nil {
			return nil
		}
		cloned := make(json.RawMessage, len(v))
		copy(cloned, v)
		return cloned
	default:
		return v
	}
}

func cloneArray(values []any) []any {
	if values == nil {
		return nil
	}
	cloned := make([]any, len(values))
	for i, item := range values {
		cloned[i] = Clone(item)
	}
	return cloned
}

// Equal is a deep comparison where numbers are compared by value, so int 1
// equals float64 1.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, exists := y[k]
			if !exists || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}

	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}

	return reflect.DeepEqual(a, b)
}

// ToFloat reports whether v is a number and returns it as float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
