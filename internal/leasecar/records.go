package leasecar

import (
	"strconv"
	"strings"
)

// Flat-file headers, one per entity.
var (
	SpecHeader = []string{
		"id", "make", "model", "year", "type", "trimLevel", "retailPrice",
		"fuelType", "batteryCapacity", "range", "enginePowerHP", "maxTorque",
		"acceleration", "topSpeed", "length", "height", "weight", "seats",
		"luggageSpace", "standardFeatures_list",
	}
	PriceHeader = []string{"leasecarId", "make", "model", "duration", "mileage", "pricePerMonth"}
	ColorHeader = []string{"leasecarId", "make", "model", "colorName", "colorCode", "colorPrice", "primaryRgbCode"}
)

// Row renders the spec in SpecHeader order.
func (s VehicleSpec) Row() []string {
	return []string{
		s.ID,
		s.Make,
		s.Model,
		formatInt(s.Year),
		s.Type,
		s.TrimLevel,
		FormatFloat(s.RetailPrice),
		s.FuelType,
		FormatFloat(s.BatteryCapacity),
		FormatFloat(s.Range),
		formatInt(s.EnginePowerHP),
		formatInt(s.MaxTorque),
		FormatFloat(s.Acceleration),
		formatInt(s.TopSpeed),
		formatInt(s.Length),
		formatInt(s.Height),
		formatInt(s.Weight),
		formatInt(s.Seats),
		formatInt(s.LuggageSpace),
		s.StandardFeatures,
	}
}

// Row renders the price point in PriceHeader order.
func (p PricePoint) Row() []string {
	return []string{
		p.LeasecarID,
		p.Make,
		p.Model,
		formatInt(p.Duration),
		formatInt(p.Mileage),
		FormatFloat(p.PricePerMonth),
	}
}

// Row renders the color option in ColorHeader order.
func (c ColorOption) Row() []string {
	return []string{
		c.LeasecarID,
		c.Make,
		c.Model,
		c.ColorName,
		c.ColorCode,
		FormatFloat(c.ColorPrice),
		c.PrimaryRGBCode,
	}
}

// FormatFloat renders v in plain decimal notation and always keeps a
// fractional part, so 0 becomes "0.0" and 45990 becomes "45990.0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
