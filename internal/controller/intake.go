package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// IntakeState enumerates the intake screen states.
type IntakeState int

const (
	// IntakeScreening is normal operation: flow PID drives the pump.
	IntakeScreening IntakeState = iota
	// IntakeCleanForward drives the screen rake forward.
	IntakeCleanForward
	// IntakeCleanPause lets debris settle between rake directions.
	IntakeCleanPause
	// IntakeCleanReverse backs the rake off before resuming.
	IntakeCleanReverse
)

// String returns the state name for logs.
func (s IntakeState) String() string {
	switch s {
	case IntakeScreening:
		return "screening"
	case IntakeCleanForward:
		return "clean-forward"
	case IntakeCleanPause:
		return "clean-pause"
	case IntakeCleanReverse:
		return "clean-reverse"
	default:
		return "unknown"
	}
}

// Intake pumps raw water through the bar screen. Flow is held at the
// setpoint by a PID on pump speed; the setpoint is derated as the
// wet-well level approaches maximum. A clog-detected false→true edge
// triggers the Forward → Pause → Reverse cleaning sequence, guarded by
// a watchdog that aborts back to screening on overrun.
type Intake struct {
	cfg config.Intake
	pid *control.PID

	state IntakeState
	// prevClog implements edge detection on the clog flag: the cleaning
	// sequence re-arms only on a fresh false→true transition.
	prevClog bool

	phaseTimer control.Timer
	watchdog   control.Timer
}

// NewIntake returns an intake controller in the screening state.
func NewIntake(cfg config.Intake) *Intake {
	return &Intake{
		cfg: cfg,
		pid: control.NewPID(cfg.PID),
	}
}

// Name implements Controller.
func (c *Intake) Name() string { return "intake" }

// Timers implements Controller.
func (c *Intake) Timers() []*control.Timer {
	return []*control.Timer{&c.phaseTimer, &c.watchdog}
}

// State returns the current screen state.
func (c *Intake) State() IntakeState { return c.state }

// Execute implements Controller.
func (c *Intake) Execute(ctx context.Context, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	clogEdge := ps.Alarms.ScreenClog && !c.prevClog
	c.prevClog = ps.Alarms.ScreenClog

	c.pid.SetSetpoint(c.flowSetpoint(ps))
	c.pid.Observe(ps.Measurements.InfluentFlow)

	switch c.state {
	case IntakeScreening:
		if clogEdge {
			c.enterCleaning(ctx, ps)

			return
		}

		speed := c.pid.Execute(dt.Seconds())
		cmds.IntakePumpRun = speed > 0
		cmds.IntakePumpSpeed = speed
		cmds.ScreenRakeForward = false
		cmds.ScreenRakeReverse = false

	case IntakeCleanForward:
		if c.cleaningOverrun(ctx, ps, cmds) {
			return
		}

		cmds.IntakePumpRun = false
		cmds.IntakePumpSpeed = 0
		cmds.ScreenRakeForward = true
		cmds.ScreenRakeReverse = false

		if c.phaseTimer.Expired() {
			c.state = IntakeCleanPause
			c.phaseTimer.Arm(c.cfg.CleanPause)
		}

	case IntakeCleanPause:
		if c.cleaningOverrun(ctx, ps, cmds) {
			return
		}

		cmds.ScreenRakeForward = false
		cmds.ScreenRakeReverse = false

		if c.phaseTimer.Expired() {
			c.state = IntakeCleanReverse
			c.phaseTimer.Arm(c.cfg.CleanReverse)
		}

	case IntakeCleanReverse:
		if c.cleaningOverrun(ctx, ps, cmds) {
			return
		}

		cmds.ScreenRakeForward = false
		cmds.ScreenRakeReverse = true

		if c.phaseTimer.Expired() {
			c.finishCleaning(ctx, ps, cmds)
		}
	}
}

// flowSetpoint returns the mode-dependent flow target, derated linearly
// as the wet-well level climbs from the derate start toward maximum.
func (c *Intake) flowSetpoint(ps *plant.ProcessState) float64 {
	sp := ps.Setpoints.Flow
	if ps.Mode == plant.ModeStorm {
		sp = ps.Setpoints.StormFlow
	}

	level := ps.Measurements.IntakeLevel
	if start := c.cfg.DerateLevelStart; level > start && start < 100 {
		factor := (100 - level) / (100 - start)
		if factor < 0 {
			factor = 0
		}

		sp *= factor
	}

	return sp
}

// enterCleaning starts the rake sequence and the overrun watchdog.
func (c *Intake) enterCleaning(ctx context.Context, ps *plant.ProcessState) {
	c.state = IntakeCleanForward
	c.phaseTimer.Arm(c.cfg.CleanForward)
	c.watchdog.Arm(c.cfg.CleanMaxDuration)
	ps.Alarms.ScreenCleanTimeout = false
	c.pid.Reset()

	logger.InfoKV(ctx, "Screen cleaning started", "cycle_id", ps.CycleID)
}

// cleaningOverrun aborts the sequence when the watchdog fires: the
// controller flags the fault and returns to screening instead of
// halting the plant.
func (c *Intake) cleaningOverrun(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) bool {
	if !c.watchdog.Expired() {
		return false
	}

	ps.Alarms.ScreenCleanTimeout = true
	c.abortToScreening(cmds)

	logger.WarnKV(ctx, "Screen cleaning overran its watchdog", "cycle_id", ps.CycleID)

	return true
}

// finishCleaning returns to normal screening after a completed sequence.
func (c *Intake) finishCleaning(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.abortToScreening(cmds)

	logger.InfoKV(ctx, "Screen cleaning finished", "cycle_id", ps.CycleID)
}

func (c *Intake) abortToScreening(cmds *plant.ActuatorCommandSet) {
	c.state = IntakeScreening
	c.phaseTimer.Disarm()
	c.watchdog.Disarm()
	cmds.ScreenRakeForward = false
	cmds.ScreenRakeReverse = false
}
