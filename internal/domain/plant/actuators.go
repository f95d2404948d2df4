package plant

// ActuatorCommandSet is the union of all digital and analog outputs
// published once per cycle. Exactly one controller writes each field in
// a normal cycle; the interlock may overwrite every field when the
// system state is Emergency.
type ActuatorCommandSet struct {
	// Intake controller outputs.
	IntakePumpRun     bool    `json:"intake_pump_run"`
	IntakePumpSpeed   float64 `json:"intake_pump_speed"` // percent
	ScreenRakeForward bool    `json:"screen_rake_forward"`
	ScreenRakeReverse bool    `json:"screen_rake_reverse"`

	// Treatment controller outputs.
	BasinMixerRun      bool `json:"basin_mixer_run"`
	SecondaryMixerRun  bool `json:"secondary_mixer_run"`
	TransferValveOpen  bool `json:"transfer_valve_open"`
	DischargeValveOpen bool `json:"discharge_valve_open"`
	BackwashValveOpen  bool `json:"backwash_valve_open"`

	// Dosing controller outputs.
	AcidPumpRun          bool    `json:"acid_pump_run"`
	BasePumpRun          bool    `json:"base_pump_run"`
	AcidDoseRate         float64 `json:"acid_dose_rate"` // L/h
	BaseDoseRate         float64 `json:"base_dose_rate"` // L/h
	DisinfectantPumpRun  bool    `json:"disinfectant_pump_run"`
	DisinfectantDoseRate float64 `json:"disinfectant_dose_rate"` // L/h

	// Aeration controller outputs.
	BlowerRun   bool    `json:"blower_run"`
	BlowerSpeed float64 `json:"blower_speed"` // percent

	// Annunciation outputs (interlock-owned in Emergency).
	AlarmBeacon bool `json:"alarm_beacon"`
	AlarmHorn   bool `json:"alarm_horn"`
}

// SafeCommands returns the interlock command set: every pump, blower and
// doser stopped, every speed and rate zero, every valve closed, and the
// annunciators asserted. Applying it twice yields the same result.
func SafeCommands() ActuatorCommandSet {
	return ActuatorCommandSet{
		AlarmBeacon: true,
		AlarmHorn:   true,
	}
}
