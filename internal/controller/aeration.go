package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// BlowerState enumerates the blower staging states.
type BlowerState int

const (
	BlowerIdle BlowerState = iota
	BlowerPrecheck
	BlowerLowSpeed
	BlowerRampUp
	BlowerRunning
	BlowerRampDown
	BlowerCoast
)

// String returns the state name for logs.
func (s BlowerState) String() string {
	switch s {
	case BlowerIdle:
		return "idle"
	case BlowerPrecheck:
		return "precheck"
	case BlowerLowSpeed:
		return "low-speed"
	case BlowerRampUp:
		return "ramp-up"
	case BlowerRunning:
		return "running"
	case BlowerRampDown:
		return "ramp-down"
	case BlowerCoast:
		return "coast"
	default:
		return "unknown"
	}
}

// Aeration holds dissolved oxygen at the setpoint with a PID on blower
// speed, bounded to the blower's working range. Start-up and shutdown
// are staged: precheck, a fixed low-speed window, then a linear ramp
// toward the closed-loop speed; shutdown ramps back down and coasts
// before the blower may restart. Optional anoxic cycling periodically
// shuts aeration down, overridden when DO falls below the critical
// floor.
type Aeration struct {
	cfg config.Aeration
	pid *control.PID

	state      BlowerState
	stageTimer control.Timer
	// rampFrom is the speed the current ramp started at.
	rampFrom  float64
	lastSpeed float64

	// aerobic is the current half of the anoxic cycle.
	aerobic    bool
	cycleTimer control.Timer
}

// NewAeration returns an aeration controller with the blower idle.
func NewAeration(cfg config.Aeration) *Aeration {
	return &Aeration{
		cfg: cfg,
		pid: control.NewPID(cfg.PID),
	}
}

// Name implements Controller.
func (c *Aeration) Name() string { return "aeration" }

// Timers implements Controller.
func (c *Aeration) Timers() []*control.Timer {
	return []*control.Timer{&c.stageTimer, &c.cycleTimer}
}

// State returns the current blower state.
func (c *Aeration) State() BlowerState { return c.state }

// Aerobic reports whether the anoxic cycle is in its aerobic half.
func (c *Aeration) Aerobic() bool { return c.aerobic || !c.cfg.CycleEnabled }

// Init arms the anoxic cycle in its aerobic half.
func (c *Aeration) Init() {
	c.aerobic = true
	if c.cfg.CycleEnabled {
		c.cycleTimer.Arm(c.cfg.AerobicDuration)
	}
}

// Execute implements Controller.
func (c *Aeration) Execute(ctx context.Context, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.advanceCycle(ctx, ps)

	c.pid.SetSetpoint(ps.Setpoints.DO)
	c.pid.Observe(ps.Measurements.DissolvedOxygen)

	demand := c.aerationDemand(ps)

	switch c.state {
	case BlowerIdle:
		c.setSpeed(cmds, 0)

		if demand {
			c.transition(ctx, ps, BlowerPrecheck, c.cfg.PrecheckDuration)
			c.pid.Reset()
		}

	case BlowerPrecheck:
		// Blower stays off while the precheck window runs.
		c.setSpeed(cmds, 0)

		if !demand {
			c.transition(ctx, ps, BlowerIdle, 0)
		} else if c.stageTimer.Expired() {
			c.transition(ctx, ps, BlowerLowSpeed, c.cfg.LowSpeedDuration)
		}

	case BlowerLowSpeed:
		c.setSpeed(cmds, c.cfg.MinSpeed)

		if !demand {
			c.startRampDown(ctx, ps)
		} else if c.stageTimer.Expired() {
			c.rampFrom = c.cfg.MinSpeed
			c.transition(ctx, ps, BlowerRampUp, c.cfg.RampDuration)
		}

	case BlowerRampUp:
		target := c.closedLoopSpeed(dt)
		c.setSpeed(cmds, c.rampFrom+c.rampFraction()*(target-c.rampFrom))

		if !demand {
			c.startRampDown(ctx, ps)
		} else if c.stageTimer.Expired() {
			c.transition(ctx, ps, BlowerRunning, 0)
		}

	case BlowerRunning:
		c.setSpeed(cmds, c.closedLoopSpeed(dt))

		if !demand {
			c.startRampDown(ctx, ps)
		}

	case BlowerRampDown:
		c.setSpeed(cmds, c.rampFrom+c.rampFraction()*(c.cfg.MinSpeed-c.rampFrom))

		if demand {
			c.transition(ctx, ps, BlowerRunning, 0)
		} else if c.stageTimer.Expired() {
			c.transition(ctx, ps, BlowerCoast, c.cfg.CoastStopDuration)
		}

	case BlowerCoast:
		// Restart lockout: the blower must coast to a stop before a new
		// start sequence is allowed.
		c.setSpeed(cmds, 0)

		if c.stageTimer.Expired() {
			c.transition(ctx, ps, BlowerIdle, 0)
		}
	}
}

// aerationDemand reports whether the blower should be running this
// cycle. The anoxic half of the cycle suppresses demand unless DO has
// fallen below the critical floor.
func (c *Aeration) aerationDemand(ps *plant.ProcessState) bool {
	if !c.cfg.CycleEnabled || c.aerobic {
		return true
	}

	return ps.Measurements.DissolvedOxygen < c.cfg.CriticalDOFloor
}

// advanceCycle toggles the aerobic/anoxic halves on their timers.
func (c *Aeration) advanceCycle(ctx context.Context, ps *plant.ProcessState) {
	if !c.cfg.CycleEnabled || !c.cycleTimer.Expired() {
		return
	}

	c.aerobic = !c.aerobic
	if c.aerobic {
		c.cycleTimer.Arm(c.cfg.AerobicDuration)
	} else {
		c.cycleTimer.Arm(c.cfg.AnoxicDuration)
	}

	logger.InfoKV(ctx, "Aeration cycle phase change",
		"aerobic", c.aerobic, "cycle_id", ps.CycleID)
}

// closedLoopSpeed runs the DO loop and bounds the result to the
// blower's working range.
func (c *Aeration) closedLoopSpeed(dt time.Duration) float64 {
	speed := c.pid.Execute(dt.Seconds())
	if speed < c.cfg.MinSpeed {
		speed = c.cfg.MinSpeed
	}
	if speed > c.cfg.MaxSpeed {
		speed = c.cfg.MaxSpeed
	}

	return speed
}

// rampFraction returns the elapsed fraction of the current ramp.
func (c *Aeration) rampFraction() float64 {
	if c.cfg.RampDuration <= 0 {
		return 1
	}

	frac := float64(c.stageTimer.Elapsed()) / float64(c.cfg.RampDuration)
	if frac > 1 {
		frac = 1
	}

	return frac
}

func (c *Aeration) startRampDown(ctx context.Context, ps *plant.ProcessState) {
	c.rampFrom = c.lastSpeed
	c.transition(ctx, ps, BlowerRampDown, c.cfg.RampDuration)
}

func (c *Aeration) setSpeed(cmds *plant.ActuatorCommandSet, speed float64) {
	c.lastSpeed = speed
	cmds.BlowerRun = speed > 0
	cmds.BlowerSpeed = speed
}

func (c *Aeration) transition(ctx context.Context, ps *plant.ProcessState, next BlowerState, d time.Duration) {
	logger.InfoKV(ctx, "Blower state change",
		"from", c.state.String(), "to", next.String(), "cycle_id", ps.CycleID)

	c.state = next
	if d > 0 {
		c.stageTimer.Arm(d)
	} else {
		c.stageTimer.Disarm()
	}
}
