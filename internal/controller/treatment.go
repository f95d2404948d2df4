package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// TreatmentPhase enumerates the primary treatment cycle phases.
type TreatmentPhase int

const (
	PhaseFill TreatmentPhase = iota
	PhaseMix
	PhaseSettle
	PhaseTransfer
)

// String returns the phase name for logs.
func (p TreatmentPhase) String() string {
	switch p {
	case PhaseFill:
		return "fill"
	case PhaseMix:
		return "mix"
	case PhaseSettle:
		return "settle"
	case PhaseTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// BackwashState enumerates the filter backwash sub-sequence.
type BackwashState int

const (
	BackwashIdle BackwashState = iota
	BackwashDrain
	BackwashRinse
)

// Treatment runs the primary batch cycle Fill → Mix → Settle → Transfer
// on dedicated timers, level-gates the secondary mixer, opens the
// discharge valve only while level, pH and turbidity are simultaneously
// in their permissive bands, and preempts the valves with a filter
// backwash on schedule or a high differential-pressure alarm.
type Treatment struct {
	cfg config.Treatment

	phase      TreatmentPhase
	phaseTimer control.Timer

	backwash      BackwashState
	backwashTimer control.Timer
	// scheduleTimer fires the periodic backwash.
	scheduleTimer control.Timer
}

// NewTreatment returns a treatment controller at the start of a fill.
func NewTreatment(cfg config.Treatment) *Treatment {
	return &Treatment{cfg: cfg}
}

// Name implements Controller.
func (c *Treatment) Name() string { return "treatment" }

// Timers implements Controller.
func (c *Treatment) Timers() []*control.Timer {
	return []*control.Timer{&c.phaseTimer, &c.backwashTimer, &c.scheduleTimer}
}

// Phase returns the current primary phase.
func (c *Treatment) Phase() TreatmentPhase { return c.phase }

// Backwash returns the current backwash state.
func (c *Treatment) Backwash() BackwashState { return c.backwash }

// Init arms the first fill phase and the backwash schedule. Called once
// by the scheduler's initialization phase.
func (c *Treatment) Init() {
	c.phase = PhaseFill
	c.phaseTimer.Arm(c.cfg.FillDuration)
	c.scheduleTimer.Arm(c.cfg.BackwashInterval)
}

// Execute implements Controller.
func (c *Treatment) Execute(ctx context.Context, _ time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.runPrimaryCycle(ctx, ps, cmds)
	c.runBackwash(ctx, ps, cmds)

	level := ps.Measurements.BasinLevel

	// Secondary mixing is level-gated: on above the threshold, off below.
	cmds.SecondaryMixerRun = level > c.cfg.MixerOnLevel

	// Discharge opens only while every permissive holds at once. The
	// level permissive dominates: above the high limit the valve closes
	// regardless of pH and turbidity.
	permissive := level >= c.cfg.DischargeMinLevel &&
		level <= c.cfg.DischargeMaxLevel &&
		ps.Measurements.PH >= c.cfg.DischargePHMin &&
		ps.Measurements.PH <= c.cfg.DischargePHMax &&
		ps.Measurements.Turbidity <= c.cfg.DischargeTurbidityMax

	cmds.DischargeValveOpen = permissive && c.backwash == BackwashIdle
	ps.DischargeActive = cmds.DischargeValveOpen

	// High basin level also closes the transfer path (overflow guard).
	if level > c.cfg.DischargeMaxLevel {
		cmds.TransferValveOpen = false
	}
}

// runPrimaryCycle advances the Fill → Mix → Settle → Transfer loop.
func (c *Treatment) runPrimaryCycle(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	switch c.phase {
	case PhaseFill:
		cmds.BasinMixerRun = false
		cmds.TransferValveOpen = false

		c.advancePhase(ctx, ps, PhaseMix, c.cfg.MixDuration)

	case PhaseMix:
		cmds.BasinMixerRun = true
		cmds.TransferValveOpen = false

		c.advancePhase(ctx, ps, PhaseSettle, c.cfg.SettleDuration)

	case PhaseSettle:
		cmds.BasinMixerRun = false
		cmds.TransferValveOpen = false

		c.advancePhase(ctx, ps, PhaseTransfer, c.cfg.TransferDuration)

	case PhaseTransfer:
		cmds.BasinMixerRun = false
		cmds.TransferValveOpen = true

		c.advancePhase(ctx, ps, PhaseFill, c.cfg.FillDuration)
	}
}

// advancePhase moves to the next phase when the current timer expires.
func (c *Treatment) advancePhase(ctx context.Context, ps *plant.ProcessState, next TreatmentPhase, d time.Duration) {
	if !c.phaseTimer.Expired() {
		return
	}

	logger.InfoKV(ctx, "Primary treatment phase change",
		"from", c.phase.String(), "to", next.String(), "cycle_id", ps.CycleID)

	c.phase = next
	c.phaseTimer.Arm(d)
}

// runBackwash drives the drain → rinse sub-sequence. While active it
// preempts the discharge valve (handled by the permissive logic above).
func (c *Treatment) runBackwash(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	switch c.backwash {
	case BackwashIdle:
		cmds.BackwashValveOpen = false

		if c.scheduleTimer.Expired() || ps.Alarms.HighFilterDP {
			c.backwash = BackwashDrain
			c.backwashTimer.Arm(c.cfg.BackwashDrain)
			c.scheduleTimer.Arm(c.cfg.BackwashInterval)

			logger.InfoKV(ctx, "Filter backwash started",
				"cycle_id", ps.CycleID, "high_dp", ps.Alarms.HighFilterDP)
		}

	case BackwashDrain:
		cmds.BackwashValveOpen = true

		if c.backwashTimer.Expired() {
			c.backwash = BackwashRinse
			c.backwashTimer.Arm(c.cfg.BackwashRinse)
		}

	case BackwashRinse:
		cmds.BackwashValveOpen = true

		if c.backwashTimer.Expired() {
			c.backwash = BackwashIdle
			c.backwashTimer.Disarm()
			cmds.BackwashValveOpen = false

			logger.InfoKV(ctx, "Filter backwash finished", "cycle_id", ps.CycleID)
		}
	}
}
