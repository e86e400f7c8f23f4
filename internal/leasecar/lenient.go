package leasecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// ID is a catalog identifier. The API sends it either as a JSON string or
// as a bare number; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Text decodes strings as-is and renders numbers and booleans in their JSON
// form. Null and missing values stay empty.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, jsonNull):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text: %w", err)
		}
		*t = Text(s)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("decode text: unexpected %c", data[0])
	default:
		*t = Text(data)
	}
	return nil
}

// Float is a float64 that tolerates numeric strings and decodes null or a
// missing field to 0.0.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(data []byte) error {
	v, err := decodeNumber(data)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Int is an int64 that tolerates numeric strings and fractional values
// (truncated toward zero). Null or a missing field decodes to 0.
type Int int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(data []byte) error {
	v, err := decodeNumber(data)
	if err != nil {
		return err
	}
	if v >= 0x1p63 || v < -0x1p63 {
		return fmt.Errorf("decode int: %v out of range", v)
	}
	*i = Int(int64(v))
	return nil
}

func decodeNumber(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return 0, nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return 0, fmt.Errorf("decode number: %w", err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return 0, nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("decode number %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("decode number %q: not finite", raw)
	}
	return v, nil
}
