package leasecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDetail marks a detail body that cannot be decomposed.
var ErrMalformedDetail = errors.New("malformed detail response")

type detailBody struct {
	ID               ID          `json:"id"`
	VehicleData      vehicleData `json:"vehicleData"`
	PrivateLeaseData leaseData   `json:"privateLeaseData"`
}

type vehicleData struct {
	Make              Text        `json:"make"`
	Model             Text        `json:"model"`
	Year              Int         `json:"year"`
	Type              Text        `json:"type"`
	TrimLevel         Text        `json:"trimLevel"`
	RetailPrice       Float       `json:"retailPrice"`
	FuelType          Text        `json:"fuelType"`
	BatteryCapacity   Float       `json:"batteryCapacity"`
	Range             Float       `json:"range"`
	EnginePowerHP     Int         `json:"enginePowerHP"`
	MaxTorque         Int         `json:"maxTorque"`
	Acceleration      Float       `json:"acceleration"`
	TopSpeed          Int         `json:"topSpeed"`
	Length            Int         `json:"length"`
	Height            Int         `json:"height"`
	Weight            Int         `json:"weight"`
	Seats             Int         `json:"seats"`
	LuggageSpace      Int         `json:"luggageSpace"`
	StandardEquipment []equipment `json:"standardEquipment"`
}

type equipment struct {
	Group Text `json:"group"`
	Name  Text `json:"name"`
}

type leaseData struct {
	PricePoints []pricePoint `json:"pricePoints"`
	Colors      []color      `json:"colors"`
}

type pricePoint struct {
	Duration      Int   `json:"duration"`
	Mileage       Int   `json:"mileage"`
	PricePerMonth Float `json:"pricePerMonth"`
}

type color struct {
	Name           Text  `json:"name"`
	OrderCode      Text  `json:"orderCode"`
	Price          Float `json:"price"`
	PrimaryRGBCode Text  `json:"primaryRgbCode"`
}

// Decompose parses one detail response body into a specification row plus
// its price points and color options. requested is the identifier the
// detail was fetched for; it is used when the body carries no id of its own.
func Decompose(requested string, body []byte) (Records, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Records{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedDetail)
	}
	var d detailBody
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return Records{}, fmt.Errorf("%w: %w", ErrMalformedDetail, err)
	}

	id := string(d.ID)
	if id == "" {
		id = requested
	}
	v := d.VehicleData
	spec := VehicleSpec{
		ID:               id,
		Make:             string(v.Make),
		Model:            string(v.Model),
		Year:             int64(v.Year),
		Type:             string(v.Type),
		TrimLevel:        string(v.TrimLevel),
		RetailPrice:      float64(v.RetailPrice),
		FuelType:         string(v.FuelType),
		BatteryCapacity:  float64(v.BatteryCapacity),
		Range:            float64(v.Range),
		EnginePowerHP:    int64(v.EnginePowerHP),
		MaxTorque:        int64(v.MaxTorque),
		Acceleration:     float64(v.Acceleration),
		TopSpeed:         int64(v.TopSpeed),
		Length:           int64(v.Length),
		Height:           int64(v.Height),
		Weight:           int64(v.Weight),
		Seats:            int64(v.Seats),
		LuggageSpace:     int64(v.LuggageSpace),
		StandardFeatures: joinFeatures(v.StandardEquipment),
	}

	out := Records{Spec: spec}
	for _, p := range d.PrivateLeaseData.PricePoints {
		out.Prices = append(out.Prices, PricePoint{
			LeasecarID:    id,
			Make:          spec.Make,
			Model:         spec.Model,
			Duration:      int64(p.Duration),
			Mileage:       int64(p.Mileage),
			PricePerMonth: float64(p.PricePerMonth),
		})
	}
	for _, c := range d.PrivateLeaseData.Colors {
		out.Colors = append(out.Colors, ColorOption{
			LeasecarID:     id,
			Make:           spec.Make,
			Model:          spec.Model,
			ColorName:      string(c.Name),
			ColorCode:      string(c.OrderCode),
			ColorPrice:     float64(c.Price),
			PrimaryRGBCode: string(c.PrimaryRGBCode),
		})
	}
	return out, nil
}

func joinFeatures(items []equipment) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s: %s", item.Group, item.Name))
	}
	return strings.Join(parts, "|")
}
