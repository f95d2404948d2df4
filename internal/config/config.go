package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

const (
	// DefaultConfigFilename is the default filename for plant settings.
	DefaultConfigFilename = "plant-controller.yaml"

	// DefaultSnapshotFilename is the default filename for the process
	// state snapshot JSON.
	DefaultSnapshotFilename = "plant-state.json"

	// DefaultScanPeriod is the default scan tick.
	DefaultScanPeriod = 100 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errScanPeriod is returned for a non-positive scan period.
	errScanPeriod = errors.New("scan period must be positive")
	// errPIDLimits is returned when a PID output range is inverted.
	errPIDLimits = errors.New("pid output_min must be below output_max")
	// errSpeedRange is returned when the blower speed range is inverted.
	errSpeedRange = errors.New("aeration min_speed must be below max_speed")
)

// ChannelScale is the fixed raw-range → engineering-unit-range contract
// for one analog input channel.
type ChannelScale struct {
	RawMin float64 `yaml:"raw_min"`
	RawMax float64 `yaml:"raw_max"`
	EngMin float64 `yaml:"eng_min"`
	EngMax float64 `yaml:"eng_max"`
}

// Scaling holds the per-channel scaling contracts.
type Scaling struct {
	Flow        ChannelScale `yaml:"flow"`
	IntakeLevel ChannelScale `yaml:"intake_level"`
	BasinLevel  ChannelScale `yaml:"basin_level"`
	PH          ChannelScale `yaml:"ph"`
	DO          ChannelScale `yaml:"do"`
	Turbidity   ChannelScale `yaml:"turbidity"`
	Chlorine    ChannelScale `yaml:"chlorine"`
	Temperature ChannelScale `yaml:"temperature"`
	FilterDP    ChannelScale `yaml:"filter_dp"`
	SupplyLevel ChannelScale `yaml:"supply_level"`
}

// Alarms holds the threshold set the scheduler derives alarm flags from.
type Alarms struct {
	// HighIntakeLevel in percent; critical (escalates to Emergency).
	HighIntakeLevel float64 `yaml:"high_intake_level"`
	// HighBasinLevel in percent.
	HighBasinLevel float64 `yaml:"high_basin_level"`
	// PHLow/PHHigh bound the acceptable pH band.
	PHLow  float64 `yaml:"ph_low"`
	PHHigh float64 `yaml:"ph_high"`
	// DOLow in mg/L.
	DOLow float64 `yaml:"do_low"`
	// TurbidityHigh in NTU.
	TurbidityHigh float64 `yaml:"turbidity_high"`
	// ChlorineLow/ChlorineHigh in mg/L.
	ChlorineLow  float64 `yaml:"chlorine_low"`
	ChlorineHigh float64 `yaml:"chlorine_high"`
	// FilterDPHigh in kPa.
	FilterDPHigh float64 `yaml:"filter_dp_high"`
	// StormFlow engages Storm mode above this influent flow (m³/h);
	// Storm disengages below StormFlow - StormFlowHysteresis.
	StormFlow           float64 `yaml:"storm_flow"`
	StormFlowHysteresis float64 `yaml:"storm_flow_hysteresis"`
}

// Intake configures the intake controller.
type Intake struct {
	// PID drives intake pump speed from the flow error.
	PID control.PIDConfig `yaml:"pid"`
	// FlowSetpoint and StormFlowSetpoint in m³/h.
	FlowSetpoint      float64 `yaml:"flow_setpoint"`
	StormFlowSetpoint float64 `yaml:"storm_flow_setpoint"`
	// DerateLevelStart is the intake level (%) above which the flow
	// setpoint is reduced linearly down to zero at the high-level alarm.
	DerateLevelStart float64 `yaml:"derate_level_start"`
	// Screen cleaning sequence durations.
	CleanForward time.Duration `yaml:"clean_forward"`
	CleanPause   time.Duration `yaml:"clean_pause"`
	CleanReverse time.Duration `yaml:"clean_reverse"`
	// CleanMaxDuration is the watchdog for the whole cleaning sequence.
	CleanMaxDuration time.Duration `yaml:"clean_max_duration"`
}

// Treatment configures the treatment controller.
type Treatment struct {
	// Primary cycle phase durations.
	FillDuration     time.Duration `yaml:"fill_duration"`
	MixDuration      time.Duration `yaml:"mix_duration"`
	SettleDuration   time.Duration `yaml:"settle_duration"`
	TransferDuration time.Duration `yaml:"transfer_duration"`
	// MixerOnLevel gates the secondary mixer (percent, on above / off below).
	MixerOnLevel float64 `yaml:"mixer_on_level"`
	// Discharge permissives.
	DischargeMinLevel     float64 `yaml:"discharge_min_level"`
	DischargeMaxLevel     float64 `yaml:"discharge_max_level"`
	DischargePHMin        float64 `yaml:"discharge_ph_min"`
	DischargePHMax        float64 `yaml:"discharge_ph_max"`
	DischargeTurbidityMax float64 `yaml:"discharge_turbidity_max"`
	// Filter backwash scheduling and sequence durations.
	BackwashInterval time.Duration `yaml:"backwash_interval"`
	BackwashDrain    time.Duration `yaml:"backwash_drain"`
	BackwashRinse    time.Duration `yaml:"backwash_rinse"`
}

// Dosing configures the chemical dosing controller.
type Dosing struct {
	// PHPID computes a signed correction demand; its sign selects the
	// acid or base branch.
	PHPID control.PIDConfig `yaml:"ph_pid"`
	// ChlorinePID computes the disinfectant dose demand.
	ChlorinePID control.PIDConfig `yaml:"chlorine_pid"`
	PHSetpoint       float64 `yaml:"ph_setpoint"`
	ChlorineSetpoint float64 `yaml:"chlorine_setpoint"`
	// HysteresisBand: the acid/base branch switches only when the pH
	// error leaves this band on the opposite side.
	HysteresisBand float64 `yaml:"hysteresis_band"`
	// UrgentBand: beyond this |error| the pumps run continuously.
	UrgentBand float64 `yaml:"urgent_band"`
	// LowDemandThreshold (percent of max demand) below which the pump is
	// duty-cycle pulsed instead of run continuously.
	LowDemandThreshold float64 `yaml:"low_demand_threshold"`
	// PulsePeriod is the full on+off period of the duty-cycle modulator.
	PulsePeriod time.Duration `yaml:"pulse_period"`
	// DesignFlow (m³/h) paces the disinfectant dose with influent flow.
	DesignFlow float64 `yaml:"design_flow"`
	// SupplyLowLevel (percent) below which the disinfectant dose is
	// derated linearly to zero at an empty tank.
	SupplyLowLevel float64 `yaml:"supply_low_level"`
}

// Aeration configures the aeration controller.
type Aeration struct {
	// PID drives blower speed from the DO error.
	PID        control.PIDConfig `yaml:"pid"`
	DOSetpoint float64           `yaml:"do_setpoint"`
	// MinSpeed/MaxSpeed bound the blower speed in percent.
	MinSpeed float64 `yaml:"min_speed"`
	MaxSpeed float64 `yaml:"max_speed"`
	// Startup/shutdown staging durations.
	PrecheckDuration  time.Duration `yaml:"precheck_duration"`
	LowSpeedDuration  time.Duration `yaml:"low_speed_duration"`
	RampDuration      time.Duration `yaml:"ramp_duration"`
	CoastStopDuration time.Duration `yaml:"coast_stop_duration"`
	// Anoxic/aerobic cycling.
	CycleEnabled    bool          `yaml:"cycle_enabled"`
	AerobicDuration time.Duration `yaml:"aerobic_duration"`
	AnoxicDuration  time.Duration `yaml:"anoxic_duration"`
	// CriticalDOFloor forces aeration to resume mid-anoxic-phase.
	CriticalDOFloor float64 `yaml:"critical_do_floor"`
}

// Monitoring configures the compliance limits and anomaly detection.
type Monitoring struct {
	// Registered discharge limits.
	PHMin        float64 `yaml:"ph_min"`
	PHMax        float64 `yaml:"ph_max"`
	TurbidityMax float64 `yaml:"turbidity_max"`
	ChlorineMin  float64 `yaml:"chlorine_min"`
	ChlorineMax  float64 `yaml:"chlorine_max"`
	// Flow anomaly: pump commanded above AnomalyMinSpeed (%) while flow
	// stays below AnomalyMinFlow (m³/h).
	AnomalyMinSpeed float64 `yaml:"anomaly_min_speed"`
	AnomalyMinFlow  float64 `yaml:"anomaly_min_flow"`
}

// MQTT configures the field I/O collaborator edges.
type MQTT struct {
	// Enabled switches the MQTT source/publishers on.
	Enabled bool `yaml:"enabled"`
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker"`
	// ClientID identifies this controller on the broker.
	ClientID string `yaml:"client_id"`
	// MeasurementsTopic delivers raw measurement snapshots to the core.
	MeasurementsTopic string `yaml:"measurements_topic"`
	// CommandsTopic receives the published actuator command set.
	CommandsTopic string `yaml:"commands_topic"`
	// EventsTopic receives alarm events.
	EventsTopic string `yaml:"events_topic"`
}

// Config holds the whole plant configuration.
type Config struct {
	// ScanPeriod is the fixed scan tick.
	ScanPeriod time.Duration `yaml:"scan_period"`
	// RatePeriodCycles is the sub-period (in cycles) on which derived
	// rates of change are recomputed.
	RatePeriodCycles int `yaml:"rate_period_cycles"`
	// Mode is the operator-selected operating mode (stopped, auto,
	// maintenance).
	Mode string `yaml:"mode"`
	// EventLogCapacity bounds the alarm event ring.
	EventLogCapacity int `yaml:"event_log_capacity"`
	// SnapshotFile is where the last committed process state is persisted.
	SnapshotFile string `yaml:"snapshot_file"`
	// SnapshotEveryCycles is the persistence sub-period (0 disables).
	SnapshotEveryCycles int `yaml:"snapshot_every_cycles"`
	// MetricsAddress is the prometheus listen address ("" disables).
	MetricsAddress string `yaml:"metrics_addr"`

	MQTT       MQTT       `yaml:"mqtt"`
	Scaling    Scaling    `yaml:"scaling"`
	Alarms     Alarms     `yaml:"alarms"`
	Intake     Intake     `yaml:"intake"`
	Treatment  Treatment  `yaml:"treatment"`
	Dosing     Dosing     `yaml:"dosing"`
	Aeration   Aeration   `yaml:"aeration"`
	Monitoring Monitoring `yaml:"monitoring"`
}

// Default returns a fully populated configuration with the illustrative
// process constants from the source material as defaults.
func Default() *Config {
	return &Config{
		ScanPeriod:          DefaultScanPeriod,
		RatePeriodCycles:    10,
		Mode:                "auto",
		EventLogCapacity:    eventlogDefaultCapacity,
		SnapshotFile:        DefaultSnapshotFilename,
		SnapshotEveryCycles: 100,
		MetricsAddress:      ":9090",
		MQTT: MQTT{
			Broker:            "tcp://localhost:1883",
			ClientID:          "plant-controller",
			MeasurementsTopic: "plant/measurements",
			CommandsTopic:     "plant/commands",
			EventsTopic:       "plant/events",
		},
		Scaling: Scaling{
			Flow:        ChannelScale{RawMax: 65535, EngMax: 500},
			IntakeLevel: ChannelScale{RawMax: 65535, EngMax: 100},
			BasinLevel:  ChannelScale{RawMax: 65535, EngMax: 100},
			PH:          ChannelScale{RawMax: 65535, EngMax: 14},
			DO:          ChannelScale{RawMax: 65535, EngMax: 20},
			Turbidity:   ChannelScale{RawMax: 65535, EngMax: 100},
			Chlorine:    ChannelScale{RawMax: 65535, EngMax: 5},
			Temperature: ChannelScale{RawMax: 65535, EngMin: -10, EngMax: 50},
			FilterDP:    ChannelScale{RawMax: 65535, EngMax: 200},
			SupplyLevel: ChannelScale{RawMax: 65535, EngMax: 100},
		},
		Alarms: Alarms{
			HighIntakeLevel:     95,
			HighBasinLevel:      95,
			PHLow:               6.0,
			PHHigh:              9.0,
			DOLow:               1.0,
			TurbidityHigh:       30,
			ChlorineLow:         0.2,
			ChlorineHigh:        4.0,
			FilterDPHigh:        80,
			StormFlow:           350,
			StormFlowHysteresis: 50,
		},
		Intake: Intake{
			PID: control.PIDConfig{
				Kp: 0.5, Ki: 0.1,
				OutputMax:     100,
				IntegralLimit: 100,
				Deadband:      1,
			},
			FlowSetpoint:      200,
			StormFlowSetpoint: 400,
			DerateLevelStart:  80,
			CleanForward:      30 * time.Second,
			CleanPause:        5 * time.Second,
			CleanReverse:      20 * time.Second,
			CleanMaxDuration:  2 * time.Minute,
		},
		Treatment: Treatment{
			FillDuration:          10 * time.Minute,
			MixDuration:           15 * time.Minute,
			SettleDuration:        30 * time.Minute,
			TransferDuration:      8 * time.Minute,
			MixerOnLevel:          40,
			DischargeMinLevel:     20,
			DischargeMaxLevel:     95,
			DischargePHMin:        6.5,
			DischargePHMax:        8.5,
			DischargeTurbidityMax: 10,
			BackwashInterval:      6 * time.Hour,
			BackwashDrain:         90 * time.Second,
			BackwashRinse:         3 * time.Minute,
		},
		Dosing: Dosing{
			PHPID: control.PIDConfig{
				Kp: 20, Ki: 2,
				OutputMin:     -100,
				OutputMax:     100,
				IntegralLimit: 50,
				Deadband:      0.05,
			},
			ChlorinePID: control.PIDConfig{
				Kp: 30, Ki: 5,
				OutputMax:     100,
				IntegralLimit: 60,
				Deadband:      0.02,
			},
			PHSetpoint:         7.0,
			ChlorineSetpoint:   1.0,
			HysteresisBand:     0.2,
			UrgentBand:         1.0,
			LowDemandThreshold: 30,
			PulsePeriod:        20 * time.Second,
			DesignFlow:         300,
			SupplyLowLevel:     20,
		},
		Aeration: Aeration{
			PID: control.PIDConfig{
				Kp: 25, Ki: 4,
				OutputMax:     100,
				IntegralLimit: 80,
				Deadband:      0.05,
			},
			DOSetpoint:        2.5,
			MinSpeed:          20,
			MaxSpeed:          100,
			PrecheckDuration:  3 * time.Second,
			LowSpeedDuration:  10 * time.Second,
			RampDuration:      20 * time.Second,
			CoastStopDuration: 5 * time.Second,
			CycleEnabled:      true,
			AerobicDuration:   60 * time.Second,
			AnoxicDuration:    45 * time.Second,
			CriticalDOFloor:   0.5,
		},
		Monitoring: Monitoring{
			PHMin:           6.0,
			PHMax:           9.0,
			TurbidityMax:    15,
			ChlorineMin:     0.2,
			ChlorineMax:     4.0,
			AnomalyMinSpeed: 30,
			AnomalyMinFlow:  5,
		},
	}
}

// eventlogDefaultCapacity mirrors eventlog.DefaultCapacity without
// importing the package (config stays a leaf).
const eventlogDefaultCapacity = 256

// Load reads configuration from the provided path over the defaults and
// validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided configuration for required fields and
// fills remaining defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ScanPeriod <= 0 {
		return errScanPeriod
	}

	if _, err := plant.ParseOperatingMode(cfg.Mode); err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}

	if cfg.RatePeriodCycles <= 0 {
		cfg.RatePeriodCycles = 10
	}

	if cfg.EventLogCapacity <= 0 {
		cfg.EventLogCapacity = eventlogDefaultCapacity
	}

	if cfg.SnapshotFile == "" {
		cfg.SnapshotFile = DefaultSnapshotFilename
	}

	for _, pid := range []control.PIDConfig{
		cfg.Intake.PID, cfg.Dosing.PHPID, cfg.Dosing.ChlorinePID, cfg.Aeration.PID,
	} {
		if pid.OutputMin >= pid.OutputMax {
			return errPIDLimits
		}
	}

	if cfg.Aeration.MinSpeed >= cfg.Aeration.MaxSpeed {
		return errSpeedRange
	}

	return nil
}

// RequestedMode returns the parsed operator mode selection.
// Validate must have succeeded first.
func (c *Config) RequestedMode() plant.OperatingMode {
	mode, err := plant.ParseOperatingMode(c.Mode)
	if err != nil {
		return plant.ModeStopped
	}

	return mode
}
