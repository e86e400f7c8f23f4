package leasecar

// VehicleSpec is the specification row for one leasable vehicle
// configuration. Numeric fields are never absent: missing source values
// are stored as zero.
type VehicleSpec struct {
	ID               string
	Make             string
	Model            string
	Year             int64
	Type             string
	TrimLevel        string
	RetailPrice      float64
	FuelType         string
	BatteryCapacity  float64
	Range            float64
	EnginePowerHP    int64
	MaxTorque        int64
	Acceleration     float64
	TopSpeed         int64
	Length           int64
	Height           int64
	Weight           int64
	Seats            int64
	LuggageSpace     int64
	StandardFeatures string
}

// PricePoint is one (duration, mileage, monthly price) offer for a vehicle.
// Make and Model are echoed for readability of the flat file only.
type PricePoint struct {
	LeasecarID    string
	Make          string
	Model         string
	Duration      int64
	Mileage       int64
	PricePerMonth float64
}

// ColorOption is one paint option for a vehicle.
type ColorOption struct {
	LeasecarID     string
	Make           string
	Model          string
	ColorName      string
	ColorCode      string
	ColorPrice     float64
	PrimaryRGBCode string
}

// Records groups everything decomposed from one detail response.
type Records struct {
	Spec   VehicleSpec
	Prices []PricePoint
	Colors []ColorOption
}
