package load

import (
	"errors"
	"testing"
)

func TestConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		col     Column
		field   string
		want    any
		wantErr bool
	}{
		{"text kept verbatim", Column{"make", KindText}, "Kia ", "Kia ", false},
		{"empty text is null", Column{"make", KindText}, "", nil, false},
		{"NaN text is null", Column{"make", KindText}, "NaN", nil, false},
		{"int", Column{"year", KindInt}, "2024", int64(2024), false},
		{"float-typed int", Column{"year", KindInt}, "2024.0", int64(2024), false},
		{"fractional int", Column{"year", KindInt}, "2024.5", nil, true},
		{"garbage int", Column{"year", KindInt}, "soon", nil, true},
		{"int just past max", Column{"year", KindInt}, "9223372036854775808", nil, true},
		{"int exponent overflow", Column{"year", KindInt}, "1e19", nil, true},
		{"int negative overflow", Column{"year", KindInt}, "-1e30", nil, true},
		{"int max", Column{"year", KindInt}, "9223372036854775807", int64(9223372036854775807), false},
		{"int min as float", Column{"year", KindInt}, "-9223372036854775808.0", int64(-9223372036854775808), false},
		{"missing int", Column{"year", KindInt}, " ", nil, false},
		{"float", Column{"range", KindFloat}, "605.5", 605.5, false},
		{"float from int", Column{"range", KindFloat}, "605", 605.0, false},
		{"garbage float", Column{"range", KindFloat}, "far", nil, true},
		{"infinite float", Column{"range", KindFloat}, "Inf", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := convert(tt.col, tt.field)
			if tt.wantErr {
				if !errors.Is(err, ErrConvert) {
					t.Fatalf("convert(%q) error = %v; want ErrConvert", tt.field, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("convert(%q) error = %v", tt.field, err)
			}
			if got != tt.want {
				t.Fatalf("convert(%q) = %#v; want %#v", tt.field, got, tt.want)
			}
		})
	}
}
