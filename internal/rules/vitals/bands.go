// Package vitals classifies vital-sign readings into zones against fixed
// physiologic bands.
package vitals

import "fmt"

type Parameter string

const (
	Temperature     Parameter = "temperature"
	Systolic        Parameter = "systolic"
	Diastolic       Parameter = "diastolic"
	HeartRate       Parameter = "heart_rate"
	RespiratoryRate Parameter = "respiratory_rate"
	SpO2            Parameter = "spo2"
	Glucose         Parameter = "glucose"
	Pain            Parameter = "pain"
)

var parameterOrder = []Parameter{
	Temperature, Systolic, Diastolic, HeartRate, RespiratoryRate, SpO2, Glucose, Pain,
}

// Parameters lists every known parameter in display order.
func Parameters() []Parameter {
	return append([]Parameter(nil), parameterOrder...)
}

func (p Parameter) Valid() bool {
	_, ok := defaultBands[p]
	return ok
}

// Bands are the zone boundaries of a parameter. Normal is [NormalLow,
// NormalHigh], Low is [CriticalLow, NormalLow) and High is (NormalHigh,
// CriticalHigh]. The critical zones run out to the hard bounds, which are
// inclusive; anything outside [HardMin, HardMax] is Invalid.
type Bands struct {
	Unit         string
	HardMin      float64
	CriticalLow  float64
	NormalLow    float64
	NormalHigh   float64
	CriticalHigh float64
	HardMax      float64
}

func (b Bands) validate() error {
	ordered := b.HardMin <= b.CriticalLow &&
		b.CriticalLow <= b.NormalLow &&
		b.NormalLow <= b.NormalHigh &&
		b.NormalHigh <= b.CriticalHigh &&
		b.CriticalHigh <= b.HardMax
	if !ordered {
		return fmt.Errorf("bands out of order: %+v", b)
	}
	return nil
}

var defaultBands = map[Parameter]Bands{
	Temperature:     {Unit: "°C", HardMin: 35, CriticalLow: 35.5, NormalLow: 36.0, NormalHigh: 38.0, CriticalHigh: 39.0, HardMax: 42},
	Systolic:        {Unit: "mmHg", HardMin: 50, CriticalLow: 80, NormalLow: 90, NormalHigh: 140, CriticalHigh: 180, HardMax: 250},
	Diastolic:       {Unit: "mmHg", HardMin: 30, CriticalLow: 50, NormalLow: 60, NormalHigh: 90, CriticalHigh: 110, HardMax: 150},
	HeartRate:       {Unit: "bpm", HardMin: 30, CriticalLow: 40, NormalLow: 60, NormalHigh: 100, CriticalHigh: 130, HardMax: 250},
	RespiratoryRate: {Unit: "rpm", HardMin: 4, CriticalLow: 8, NormalLow: 12, NormalHigh: 20, CriticalHigh: 30, HardMax: 60},
	SpO2:            {Unit: "%", HardMin: 50, CriticalLow: 88, NormalLow: 95, NormalHigh: 100, CriticalHigh: 100, HardMax: 100},
	Glucose:         {Unit: "mg/dL", HardMin: 20, CriticalLow: 54, NormalLow: 70, NormalHigh: 140, CriticalHigh: 250, HardMax: 600},
	Pain:            {Unit: "/10", HardMin: 0, CriticalLow: 0, NormalLow: 0, NormalHigh: 3, CriticalHigh: 7, HardMax: 10},
}

// DefaultBands returns a copy of the built-in band table.
func DefaultBands() map[Parameter]Bands {
	out := make(map[Parameter]Bands, len(defaultBands))
	for p, b := range defaultBands {
		out[p] = b
	}
	return out
}
