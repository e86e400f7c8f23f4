package leasecar

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const fullDetail = `{
  "id": "LC-1001",
  "vehicleData": {
    "make": "Kia",
    "model": "EV3",
    "year": 2025,
    "type": "SUV",
    "trimLevel": "Plus",
    "retailPrice": 39995,
    "fuelType": "Elektrisch",
    "batteryCapacity": "81.4",
    "range": 605,
    "enginePowerHP": 204,
    "maxTorque": 283,
    "acceleration": 7.9,
    "topSpeed": 170,
    "length": 4300,
    "height": 1560,
    "weight": 1940,
    "seats": 5,
    "luggageSpace": 460,
    "standardEquipment": [
      {"group": "Comfort", "name": "Climate control"},
      {"group": "Safety", "name": "Lane assist"}
    ]
  },
  "privateLeaseData": {
    "pricePoints": [
      {"duration": 48, "mileage": 10000, "pricePerMonth": 449.0},
      {"duration": 60, "mileage": 15000, "pricePerMonth": 479.5}
    ],
    "colors": [
      {"name": "Snow White", "orderCode": "SWP", "price": 0, "primaryRgbCode": "#FFFFFF"}
    ]
  }
}`

func TestDecomposeFullDetail(t *testing.T) {
	t.Parallel()

	got, err := Decompose("LC-1001", []byte(fullDetail))
	require.NoError(t, err)

	want := Records{
		Spec: VehicleSpec{
			ID:               "LC-1001",
			Make:             "Kia",
			Model:            "EV3",
			Year:             2025,
			Type:             "SUV",
			TrimLevel:        "Plus",
			RetailPrice:      39995,
			FuelType:         "Elektrisch",
			BatteryCapacity:  81.4,
			Range:            605,
			EnginePowerHP:    204,
			MaxTorque:        283,
			Acceleration:     7.9,
			TopSpeed:         170,
			Length:           4300,
			Height:           1560,
			Weight:           1940,
			Seats:            5,
			LuggageSpace:     460,
			StandardFeatures: "Comfort: Climate control|Safety: Lane assist",
		},
		Prices: []PricePoint{
			{LeasecarID: "LC-1001", Make: "Kia", Model: "EV3", Duration: 48, Mileage: 10000, PricePerMonth: 449},
			{LeasecarID: "LC-1001", Make: "Kia", Model: "EV3", Duration: 60, Mileage: 15000, PricePerMonth: 479.5},
		},
		Colors: []ColorOption{
			{LeasecarID: "LC-1001", Make: "Kia", Model: "EV3", ColorName: "Snow White", ColorCode: "SWP", PrimaryRGBCode: "#FFFFFF"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Decompose() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecomposeMissingNumericsDefaultToZero(t *testing.T) {
	t.Parallel()

	body := `{"id": 77, "vehicleData": {"make": "Fiat", "model": "500e", "batteryCapacity": null}}`
	got, err := Decompose("77", []byte(body))
	require.NoError(t, err)

	require.Equal(t, "77", got.Spec.ID)
	require.Zero(t, got.Spec.RetailPrice)
	require.Zero(t, got.Spec.BatteryCapacity)
	require.Zero(t, got.Spec.Seats)
	require.Empty(t, got.Prices)
	require.Empty(t, got.Colors)

	row := got.Spec.Row()
	require.Len(t, row, len(SpecHeader))
	require.Equal(t, "0.0", row[6], "retailPrice")
	require.Equal(t, "0.0", row[8], "batteryCapacity")
	require.Equal(t, "0", row[10], "enginePowerHP")
	require.Equal(t, "0", row[17], "seats")
}

func TestDecomposeFallsBackToRequestedID(t *testing.T) {
	t.Parallel()

	got, err := Decompose("requested-id", []byte(`{"vehicleData": {"make": "BMW"}, "privateLeaseData": {"colors": [{"name": "Black"}]}}`))
	require.NoError(t, err)
	require.Equal(t, "requested-id", got.Spec.ID)
	require.Len(t, got.Colors, 1)
	require.Equal(t, "requested-id", got.Colors[0].LeasecarID)
}

func TestDecomposeRejectsMalformedBodies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":          ``,
		"html":           `<html>blocked</html>`,
		"truncated":      `{"id": "x", "vehicleData": {`,
		"array":          `[1,2,3]`,
		"bad number":     `{"id": "x", "vehicleData": {"retailPrice": "n/a"}}`,
		"object as text": `{"id": "x", "vehicleData": {"make": {"name": "Kia"}}}`,
		"int overflow":   `{"id": "x", "vehicleData": {"seats": 9223372036854775808}}`,
		"int underflow":  `{"id": "x", "vehicleData": {"year": -1e30}}`,
		"price overflow": `{"id": "x", "privateLeaseData": {"pricePoints": [{"mileage": "1e19"}]}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decompose("x", []byte(body))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedDetail), "expected ErrMalformedDetail, got %v", err)
		})
	}
}

func TestLenientIntTruncatesFractions(t *testing.T) {
	t.Parallel()

	got, err := Decompose("x", []byte(`{"vehicleData": {"enginePowerHP": "150.7", "seats": 4.0}}`))
	require.NoError(t, err)
	require.EqualValues(t, 150, got.Spec.EnginePowerHP)
	require.EqualValues(t, 4, got.Spec.Seats)
}
