package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// decodeNumbers unmarshals data into v with numbers kept as json.Number.
func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// NormalizeNumbers replaces every json.Number nested in v with an int when it is
// integral and fits, or with a float64 otherwise. Maps and slices are rewritten in place.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = NormalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = NormalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}
