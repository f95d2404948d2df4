package ingest

import "context"

// RawSnapshot is one cycle's worth of already-addressed channel values
// as delivered by the field-acquisition collaborator: analog channels in
// raw counts, digital inputs as booleans.
type RawSnapshot struct {
	// Analog channels, raw counts.
	Flow        float64 `json:"flow"`
	IntakeLevel float64 `json:"intake_level"`
	BasinLevel  float64 `json:"basin_level"`
	PH          float64 `json:"ph"`
	DO          float64 `json:"do"`
	Turbidity   float64 `json:"turbidity"`
	Chlorine    float64 `json:"chlorine"`
	Temperature float64 `json:"temperature"`
	FilterDP    float64 `json:"filter_dp"`
	SupplyLevel float64 `json:"supply_level"`

	// Digital inputs.
	ScreenClog    bool `json:"screen_clog"`
	GasDetected   bool `json:"gas_detected"`
	EmergencyStop bool `json:"emergency_stop"`
	Reset         bool `json:"reset"`
}

// Source delivers one raw snapshot per scan cycle. Next must not block:
// when no fresh snapshot is available it returns ok=false and the scan
// loop carries on with last values.
type Source interface {
	Next(ctx context.Context) (snap RawSnapshot, ok bool)
}
