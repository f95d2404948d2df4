package plant

import "time"

// Measurements holds the scaled engineering-unit values for one scan cycle.
type Measurements struct {
	// InfluentFlow is the intake flow rate in m³/h.
	InfluentFlow float64 `json:"influent_flow"`
	// IntakeLevel is the intake wet-well level in percent of maximum.
	IntakeLevel float64 `json:"intake_level"`
	// BasinLevel is the primary treatment basin level in percent of maximum.
	BasinLevel float64 `json:"basin_level"`
	// PH is the treated-water pH.
	PH float64 `json:"ph"`
	// DissolvedOxygen is the aeration basin DO in mg/L.
	DissolvedOxygen float64 `json:"dissolved_oxygen"`
	// Turbidity is the effluent turbidity in NTU.
	Turbidity float64 `json:"turbidity"`
	// ChlorineResidual is the effluent chlorine residual in mg/L.
	ChlorineResidual float64 `json:"chlorine_residual"`
	// Temperature is the water temperature in °C.
	Temperature float64 `json:"temperature"`
	// FilterDP is the filter differential pressure in kPa.
	FilterDP float64 `json:"filter_dp"`
	// SupplyLevel is the disinfectant day-tank level in percent.
	SupplyLevel float64 `json:"supply_level"`
}

// Setpoints holds the operator-configured targets the control loops track.
type Setpoints struct {
	// Flow is the intake flow target in m³/h (Auto mode).
	Flow float64 `json:"flow"`
	// StormFlow is the intake flow target in m³/h while in Storm mode.
	StormFlow float64 `json:"storm_flow"`
	// PH is the neutralization target.
	PH float64 `json:"ph"`
	// DO is the dissolved-oxygen target in mg/L.
	DO float64 `json:"do"`
	// Chlorine is the chlorine residual target in mg/L.
	Chlorine float64 `json:"chlorine"`
}

// Rates holds derived rates of change, recomputed on a slower sub-period
// than the main scan.
type Rates struct {
	// Flow is the influent flow rate of change in m³/h per minute.
	Flow float64 `json:"flow"`
	// IntakeLevel is the intake level rate of change in %/min.
	IntakeLevel float64 `json:"intake_level"`
}

// AlarmFlags is the enumerated set of monitored conditions. One bool per
// condition so each controller's read/write set is statically known.
//
// Writers: the scheduler owns every threshold-derived flag; the intake
// controller owns ScreenCleanTimeout; monitoring owns FlowAnomaly.
type AlarmFlags struct {
	ScreenClog         bool `json:"screen_clog"`
	HighIntakeLevel    bool `json:"high_intake_level"`
	HighBasinLevel     bool `json:"high_basin_level"`
	LowPH              bool `json:"low_ph"`
	HighPH             bool `json:"high_ph"`
	LowDO              bool `json:"low_do"`
	HighTurbidity      bool `json:"high_turbidity"`
	LowChlorine        bool `json:"low_chlorine"`
	HighChlorine       bool `json:"high_chlorine"`
	HighFilterDP       bool `json:"high_filter_dp"`
	GasDetected        bool `json:"gas_detected"`
	SensorRangeFault   bool `json:"sensor_range_fault"`
	ScreenCleanTimeout bool `json:"screen_clean_timeout"`
	FlowAnomaly        bool `json:"flow_anomaly"`
}

// Critical reports whether any emergency-classified condition is present.
// These are the only flags that escalate SystemState to Emergency.
func (f AlarmFlags) Critical() bool {
	return f.GasDetected || f.HighIntakeLevel
}

// AlarmClass reports whether any alarm-class (but not critical) condition
// is present.
func (f AlarmFlags) AlarmClass() bool {
	return f.LowPH || f.HighPH || f.HighChlorine || f.HighBasinLevel || f.FlowAnomaly
}

// WarningClass reports whether any warning-class condition is present.
func (f AlarmFlags) WarningClass() bool {
	return f.ScreenClog || f.LowDO || f.HighTurbidity || f.LowChlorine ||
		f.HighFilterDP || f.SensorRangeFault || f.ScreenCleanTimeout
}

// Any reports whether any flag at all is raised.
func (f AlarmFlags) Any() bool {
	return f.Critical() || f.AlarmClass() || f.WarningClass()
}

// Inputs are the operator/panel digital inputs sampled once per cycle.
type Inputs struct {
	// EmergencyStop is the hardwired e-stop input.
	EmergencyStop bool `json:"emergency_stop"`
	// Reset is the operator acknowledge input that clears a latched
	// emergency once the triggering condition is gone.
	Reset bool `json:"reset"`
	// RequestedMode is the operator mode selection.
	RequestedMode OperatingMode `json:"requested_mode"`
}

// ProcessState is the shared record mutated by the scan loop.
type ProcessState struct {
	// CycleID counts completed scan cycles, starting at 1.
	CycleID uint64 `json:"cycle_id"`

	Measurements Measurements `json:"measurements"`
	Setpoints    Setpoints    `json:"setpoints"`
	Rates        Rates        `json:"rates"`
	Alarms       AlarmFlags   `json:"alarms"`
	Inputs       Inputs       `json:"inputs"`

	// Mode and State are owned exclusively by the scheduler and are
	// recomputed before any controller runs.
	Mode  OperatingMode `json:"mode"`
	State SystemState   `json:"state"`

	// DischargeActive is owned by the treatment controller: true while
	// the regulated discharge path is open.
	DischargeActive bool `json:"discharge_active"`
	// Compliant is owned by monitoring: false while discharge is active
	// and any registered limit is violated.
	Compliant bool `json:"compliant"`
}

// Clone returns a copy of the state to avoid leaking the live record to
// publishers and repositories.
func (s *ProcessState) Clone() *ProcessState {
	cloned := *s

	return &cloned
}

// AlarmEvent records a single false→true alarm flag transition.
// Events are never mutated after creation.
type AlarmEvent struct {
	// Code identifies the condition that transitioned.
	Code AlarmCode `json:"code"`
	// CycleID is the scan cycle in which the transition was observed.
	CycleID uint64 `json:"cycle_id"`
	// Timestamp is when the transition was observed.
	Timestamp time.Time `json:"timestamp"`
}
