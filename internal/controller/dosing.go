package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// DoseBranch selects which neutralization chemical is active.
type DoseBranch int

const (
	DoseNone DoseBranch = iota
	DoseAcid
	DoseBase
)

// String returns the branch name for logs.
func (b DoseBranch) String() string {
	switch b {
	case DoseNone:
		return "none"
	case DoseAcid:
		return "acid"
	case DoseBase:
		return "base"
	default:
		return "unknown"
	}
}

// pulser duty-cycles a pump over a fixed period. Below a full duty the
// pump alternates between an on window of duty*period and the remaining
// off window; at the extremes the timer is released and the output is
// held constant.
type pulser struct {
	timer control.Timer
	on    bool
}

func (p *pulser) run(period time.Duration, duty float64) bool {
	if duty <= 0 {
		p.timer.Disarm()
		p.on = false

		return false
	}

	if duty >= 1 || period <= 0 {
		p.timer.Disarm()
		p.on = true

		return true
	}

	switch {
	case !p.timer.Running():
		p.on = true
		p.timer.Arm(time.Duration(duty * float64(period)))
	case p.timer.Expired():
		p.on = !p.on
		if p.on {
			p.timer.Arm(time.Duration(duty * float64(period)))
		} else {
			p.timer.Arm(time.Duration((1 - duty) * float64(period)))
		}
	}

	return p.on
}

// Dosing runs the pH neutralization and disinfection loops. The signed
// pH demand selects the acid or base pump through a hysteresis band so
// the two never chatter; small demands are duty-cycle pulsed, demands
// beyond the urgent band run the pump continuously. The disinfectant
// dose is flow-paced and derated as the day tank empties.
type Dosing struct {
	cfg config.Dosing

	phPID       *control.PID
	chlorinePID *control.PID

	branch     DoseBranch
	acidPulser pulser
	basePulser pulser
}

// NewDosing returns a dosing controller with no branch selected.
func NewDosing(cfg config.Dosing) *Dosing {
	return &Dosing{
		cfg:         cfg,
		phPID:       control.NewPID(cfg.PHPID),
		chlorinePID: control.NewPID(cfg.ChlorinePID),
	}
}

// Name implements Controller.
func (c *Dosing) Name() string { return "dosing" }

// Timers implements Controller.
func (c *Dosing) Timers() []*control.Timer {
	return []*control.Timer{&c.acidPulser.timer, &c.basePulser.timer}
}

// Branch returns the active neutralization branch.
func (c *Dosing) Branch() DoseBranch { return c.branch }

// Execute implements Controller.
func (c *Dosing) Execute(ctx context.Context, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.runNeutralization(ctx, dt, ps, cmds)
	c.runDisinfection(dt, ps, cmds)
}

// runNeutralization drives the acid/base pumps from the signed pH demand.
func (c *Dosing) runNeutralization(ctx context.Context, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.phPID.SetSetpoint(ps.Setpoints.PH)
	c.phPID.Observe(ps.Measurements.PH)

	// Positive demand raises pH (base), negative lowers it (acid).
	demand := c.phPID.Execute(dt.Seconds())
	err := ps.Setpoints.PH - ps.Measurements.PH

	c.selectBranch(ctx, ps, err)

	cmds.AcidPumpRun = false
	cmds.AcidDoseRate = 0
	cmds.BasePumpRun = false
	cmds.BaseDoseRate = 0

	switch c.branch {
	case DoseAcid:
		rate := -demand
		if rate < 0 {
			rate = 0
		}

		cmds.AcidPumpRun, cmds.AcidDoseRate = c.pumpOutput(&c.acidPulser, rate, err)
		c.basePulser.run(c.cfg.PulsePeriod, 0)

	case DoseBase:
		rate := demand
		if rate < 0 {
			rate = 0
		}

		cmds.BasePumpRun, cmds.BaseDoseRate = c.pumpOutput(&c.basePulser, rate, err)
		c.acidPulser.run(c.cfg.PulsePeriod, 0)

	case DoseNone:
		c.acidPulser.run(c.cfg.PulsePeriod, 0)
		c.basePulser.run(c.cfg.PulsePeriod, 0)
	}
}

// selectBranch switches the active chemical only when the pH error
// leaves the hysteresis band on the opposite side, so the acid and base
// pumps never alternate on sensor noise around the setpoint.
func (c *Dosing) selectBranch(ctx context.Context, ps *plant.ProcessState, err float64) {
	next := c.branch

	switch c.branch {
	case DoseNone:
		if err > c.cfg.HysteresisBand {
			next = DoseBase
		} else if err < -c.cfg.HysteresisBand {
			next = DoseAcid
		}

	case DoseAcid:
		if err > c.cfg.HysteresisBand {
			next = DoseBase
		}

	case DoseBase:
		if err < -c.cfg.HysteresisBand {
			next = DoseAcid
		}
	}

	if next == c.branch {
		return
	}

	logger.InfoKV(ctx, "Neutralization branch change",
		"from", c.branch.String(), "to", next.String(),
		"ph_error", err, "cycle_id", ps.CycleID)

	c.branch = next
	c.phPID.Reset()
}

// pumpOutput converts a demand into a run command and dose rate. In the
// urgent band the pump runs continuously at the full demand; low demands
// are pulsed at the low-demand rate so the delivered average matches.
func (c *Dosing) pumpOutput(p *pulser, demand, err float64) (bool, float64) {
	if demand <= 0 {
		p.run(c.cfg.PulsePeriod, 0)

		return false, 0
	}

	urgent := err >= c.cfg.UrgentBand || err <= -c.cfg.UrgentBand
	if urgent || demand >= c.cfg.LowDemandThreshold {
		p.run(c.cfg.PulsePeriod, 1)

		return true, demand
	}

	duty := demand / c.cfg.LowDemandThreshold
	if !p.run(c.cfg.PulsePeriod, duty) {
		return false, 0
	}

	return true, c.cfg.LowDemandThreshold
}

// runDisinfection paces the chlorine dose with influent flow and derates
// it as the supply tank approaches empty.
func (c *Dosing) runDisinfection(dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.chlorinePID.SetSetpoint(ps.Setpoints.Chlorine)
	c.chlorinePID.Observe(ps.Measurements.ChlorineResidual)

	demand := c.chlorinePID.Execute(dt.Seconds())

	rate := demand
	if c.cfg.DesignFlow > 0 {
		rate = demand * ps.Measurements.InfluentFlow / c.cfg.DesignFlow
	}

	if supply := ps.Measurements.SupplyLevel; supply < c.cfg.SupplyLowLevel && c.cfg.SupplyLowLevel > 0 {
		factor := supply / c.cfg.SupplyLowLevel
		if factor < 0 {
			factor = 0
		}

		rate *= factor
	}

	cmds.DisinfectantPumpRun = rate > 0
	cmds.DisinfectantDoseRate = rate
}
