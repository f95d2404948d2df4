package plant

import (
	"fmt"
	"strings"
)

// OperatingMode is the operator-facing mode of the plant.
type OperatingMode int

const (
	// ModeStopped halts all subsystem controllers; actuators keep their
	// last commanded values until the interlock clears them.
	ModeStopped OperatingMode = iota
	// ModeAuto is normal closed-loop operation.
	ModeAuto
	// ModeStorm is high-inflow operation: engaged automatically from Auto
	// when influent flow exceeds the storm threshold.
	ModeStorm
	// ModeMaintenance suspends the controllers for manual intervention.
	ModeMaintenance
)

// String returns the lowercase mode name.
func (m OperatingMode) String() string {
	switch m {
	case ModeStopped:
		return "stopped"
	case ModeAuto:
		return "auto"
	case ModeStorm:
		return "storm"
	case ModeMaintenance:
		return "maintenance"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseOperatingMode converts a configuration string to an OperatingMode.
// Storm is not a valid operator selection: it is entered automatically.
func ParseOperatingMode(s string) (OperatingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped":
		return ModeStopped, nil
	case "auto":
		return ModeAuto, nil
	case "maintenance":
		return ModeMaintenance, nil
	default:
		return ModeStopped, fmt.Errorf("unknown operating mode %q", s)
	}
}

// SystemState is the derived health state of the whole plant.
/// The ordering is significant: controllers are gated on comparisons
// such as "run only while state < Emergency".
type SystemState int

const (
	// StateInit is the state before the first completed scan cycle.
	StateInit SystemState = iota
	// StateRunning means no alarm flag is raised.
	StateRunning
	// StateWarning means a warning-class flag is raised.
	StateWarning
	// StateAlarm means an alarm-class flag is raised.
	StateAlarm
	// StateEmergency means the interlock is latched: a critical flag or
	// the emergency-stop input was seen and has not been reset.
	StateEmergency
)

// String returns the lowercase state name.
func (s SystemState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateWarning:
		return "warning"
	case StateAlarm:
		return "alarm"
	case StateEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
