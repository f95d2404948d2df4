// Package safety implements the interlock layer that runs after every
// controller and before commands are published.
package safety

import (
	"context"

	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// Interlock is the final authority over the actuator command set. It is
// stateless apart from the edge flag used to log entry once.
type Interlock struct {
	wasEmergency bool
}

// New returns an interlock.
func New() *Interlock {
	return &Interlock{}
}

// Apply overrides the whole command set with the safe set while the
// system state is Emergency. The override is total and idempotent:
// whatever the controllers wrote this cycle, an Emergency cycle always
// publishes the same stopped-and-annunciating command set.
func (i *Interlock) Apply(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	if ps.State != plant.StateEmergency {
		if i.wasEmergency {
			logger.InfoKV(ctx, "Interlock released", "cycle_id", ps.CycleID)
		}

		i.wasEmergency = false

		return
	}

	if !i.wasEmergency {
		logger.WarnKV(ctx, "Interlock engaged, forcing safe command set",
			"estop", ps.Inputs.EmergencyStop,
			"gas_detected", ps.Alarms.GasDetected,
			"high_intake_level", ps.Alarms.HighIntakeLevel,
			"cycle_id", ps.CycleID)
	}

	i.wasEmergency = true
	*cmds = plant.SafeCommands()
}
