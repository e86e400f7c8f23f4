package leasecar

import "testing"

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{45990, "45990.0"},
		{7.9, "7.9"},
		{-1.25, "-1.25"},
		{1e16, "10000000000000000.0"},
	}
	for _, tc := range cases {
		if got := FormatFloat(tc.in); got != tc.want {
			t.Errorf("FormatFloat(%v) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRowsMatchHeaders(t *testing.T) {
	t.Parallel()

	if got := len(VehicleSpec{}.Row()); got != len(SpecHeader) {
		t.Fatalf("spec row has %d fields, header %d", got, len(SpecHeader))
	}
	if got := len(PricePoint{}.Row()); got != len(PriceHeader) {
		t.Fatalf("price row has %d fields, header %d", got, len(PriceHeader))
	}
	if got := len(ColorOption{}.Row()); got != len(ColorHeader) {
		t.Fatalf("color row has %d fields, header %d", got, len(ColorHeader))
	}
}
