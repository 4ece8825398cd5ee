package uncertain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Number is a float64 that encodes NaN and infinities as JSON null.
// Feature snapshots use it because missing features are NaN by convention.
type Number float64

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN
func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Numbers converts a float slice for JSON encoding
func Numbers(fs []float64) []Number {
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}

// MarshalJSON encodes the value as {"x": ..., "dev": ...} with NaN as null
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X   Number `json:"x"`
		Dev Number `json:"dev"`
	}{Number(v.X), Number(v.Dev)})
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		X   Number `json:"x"`
		Dev Number `json:"dev"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.X, v.Dev = float64(raw.X), float64(raw.Dev)
	return nil
}
