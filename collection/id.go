package collection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CanonicalID converts an identity value into its string slot. Integral
// numbers of any type and their string form share the same slot, so 1, 1.0
// and "1" all map to "1". The second result is false for missing ids (nil
// or empty).
func CanonicalID(v any) (string, bool) {
	var id string

	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		id = value
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			id = value.String()
		} else {
			id = formatFloat(f)
		}
	case float64:
		id = formatFloat(value)
	case float32:
		id = formatFloat(float64(value))
	case int:
		id = strconv.FormatInt(int64(value), 10)
	case int8:
		id = strconv.FormatInt(int64(value), 10)
	case int16:
		id = strconv.FormatInt(int64(value), 10)
	case int32:
		id = strconv.FormatInt(int64(value), 10)
	case int64:
		id = strconv.FormatInt(value, 10)
	case uint:
		id = strconv.FormatUint(uint64(value), 10)
	case uint8:
		id = strconv.FormatUint(uint64(value), 10)
	case uint16:
		id = strconv.FormatUint(uint64(value), 10)
	case uint32:
		id = strconv.FormatUint(uint64(value), 10)
	case uint64:
		id = strconv.FormatUint(value, 10)
	case fmt.Stringer:
		id = value.String()
	default:
		id = fmt.Sprint(value)
	}

	return id, id != ""
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
