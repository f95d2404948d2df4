// Package scheduler implements the cyclic executive: one fixed-order
// scan pipeline repeated on the configured period.
package scheduler

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/controller"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/eventlog"
	"github.com/avolkov/plant-controller/internal/ingest"
	"github.com/avolkov/plant-controller/internal/logger"
	"github.com/avolkov/plant-controller/internal/safety"
)

// CycleSnapshot is what one completed scan cycle hands to publishers:
// a private clone of the process state, the published command set, the
// alarm events appended this cycle, and the controller execution time.
type CycleSnapshot struct {
	State    *plant.ProcessState
	Commands plant.ActuatorCommandSet
	Events   []plant.AlarmEvent
	Elapsed  time.Duration
}

// Publisher receives the outcome of every scan cycle. Publishers must
// not block; slow sinks buffer or drop on their side.
type Publisher interface {
	PublishCycle(ctx context.Context, snap CycleSnapshot)
}

// Scheduler owns the process state and runs the scan pipeline. Every
// cycle executes the same steps in the same order: ingest and scale,
// derive alarms and mode and system state, dispatch the subsystem
// controllers in fixed order, apply the interlock, advance timers,
// record events, publish.
//
// The scheduler is the only writer of Mode, State, the threshold alarm
// flags and the derived rates. It is not safe for concurrent use; Run
// drives it from a single goroutine.
type Scheduler struct {
	cfg    *config.Config
	source ingest.Source
	scaler *ingest.Scaler

	intake     *controller.Intake
	treatment  *controller.Treatment
	dosing     *controller.Dosing
	aeration   *controller.Aeration
	monitoring *controller.Monitoring

	interlock  *safety.Interlock
	events     *eventlog.Log
	publishers []Publisher

	ps   plant.ProcessState
	cmds plant.ActuatorCommandSet

	// emergencyLatched holds Emergency until the condition clears and
	// the operator asserts Reset.
	emergencyLatched bool
	prevEstop        bool
	storm            bool

	// Rate-of-change sub-period bookkeeping.
	lastFlow        float64
	lastIntakeLevel float64

	now func() time.Time
}

// New assembles a scheduler over the given source, event ring and
// publishers. Restore a persisted state with Restore before Init.
func New(cfg *config.Config, source ingest.Source, events *eventlog.Log, publishers ...Publisher) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		source:     source,
		scaler:     ingest.NewScaler(cfg.Scaling),
		intake:     controller.NewIntake(cfg.Intake),
		treatment:  controller.NewTreatment(cfg.Treatment),
		dosing:     controller.NewDosing(cfg.Dosing),
		aeration:   controller.NewAeration(cfg.Aeration),
		monitoring: controller.NewMonitoring(cfg.Monitoring),
		interlock:  safety.New(),
		events:     events,
		publishers: publishers,
		now:        time.Now,
	}
}

// Restore seeds the process state from a persisted snapshot. Must be
// called before Init.
func (s *Scheduler) Restore(ps *plant.ProcessState) {
	if ps == nil {
		return
	}

	s.ps = *ps
}

// State returns a clone of the current process state.
func (s *Scheduler) State() *plant.ProcessState {
	return s.ps.Clone()
}

// Commands returns the last published command set.
func (s *Scheduler) Commands() plant.ActuatorCommandSet {
	return s.cmds
}

// Init runs the one-shot initialization phase: setpoints from
// configuration, operator mode selection, controller start states.
// The system state stays Init until the first completed cycle.
func (s *Scheduler) Init(ctx context.Context) {
	s.ps.Setpoints = plant.Setpoints{
		Flow:      s.cfg.Intake.FlowSetpoint,
		StormFlow: s.cfg.Intake.StormFlowSetpoint,
		PH:        s.cfg.Dosing.PHSetpoint,
		DO:        s.cfg.Aeration.DOSetpoint,
		Chlorine:  s.cfg.Dosing.ChlorineSetpoint,
	}
	s.ps.Inputs.RequestedMode = s.cfg.RequestedMode()
	s.ps.Mode = s.ps.Inputs.RequestedMode
	s.ps.State = plant.StateInit
	s.ps.Compliant = true

	s.treatment.Init()
	s.aeration.Init()

	logger.InfoKV(ctx, "Scan scheduler initialized",
		"mode", s.ps.Mode.String(),
		"scan_period", s.cfg.ScanPeriod.String())
}

// Run drives Step on the configured scan period until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ScanPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scan scheduler stopping")

			return ctx.Err()
		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Step executes exactly one scan cycle.
func (s *Scheduler) Step(ctx context.Context) {
	started := s.now()
	s.ps.CycleID++

	// 1. Ingest and scale. On a quiet cycle the previous values hold.
	if snap, ok := s.source.Next(ctx); ok {
		s.applySnapshot(snap)
	}

	// 2. Derived values, alarms, mode and system state, in that order:
	// controllers must see this cycle's classification, not last cycle's.
	s.updateRates()
	s.updateThresholdAlarms()
	s.updateMode(ctx)
	s.updateSystemState(ctx)

	// 3. Fixed-order dispatch.
	ran := s.dispatch(ctx)

	// 4. Interlock has the final word over the command set.
	s.interlock.Apply(ctx, &s.ps, &s.cmds)

	// 5. Advance the timers of every controller that ran this cycle.
	for _, c := range ran {
		for _, t := range c.Timers() {
			t.Advance(s.cfg.ScanPeriod)
		}
	}

	// 6. Record this cycle's alarm events into the bounded ring.
	newEvents := s.collectEvents()
	for _, evt := range newEvents {
		s.events.Append(evt)
	}

	// 7. Publish.
	elapsed := s.now().Sub(started)
	if len(s.publishers) > 0 {
		snap := CycleSnapshot{
			State:    s.ps.Clone(),
			Commands: s.cmds,
			Events:   newEvents,
			Elapsed:  elapsed,
		}
		for _, p := range s.publishers {
			p.PublishCycle(ctx, snap)
		}
	}
}

// applySnapshot scales the analog channels and samples the digital
// inputs. The e-stop is read here, at the top of the cycle, so an
// asserted e-stop is acted on before any controller runs in the same
// cycle.
func (s *Scheduler) applySnapshot(snap ingest.RawSnapshot) {
	m, fault := s.scaler.Scale(snap)
	s.ps.Measurements = m
	s.ps.Alarms.SensorRangeFault = fault

	s.ps.Alarms.ScreenClog = snap.ScreenClog
	s.ps.Alarms.GasDetected = snap.GasDetected
	s.ps.Inputs.EmergencyStop = snap.EmergencyStop
	s.ps.Inputs.Reset = snap.Reset
}

// updateRates recomputes the derived rates of change on the slower
// sub-period.
func (s *Scheduler) updateRates() {
	if s.ps.CycleID%uint64(s.cfg.RatePeriodCycles) != 0 {
		return
	}

	minutes := (time.Duration(s.cfg.RatePeriodCycles) * s.cfg.ScanPeriod).Minutes()
	if minutes <= 0 {
		return
	}

	s.ps.Rates.Flow = (s.ps.Measurements.InfluentFlow - s.lastFlow) / minutes
	s.ps.Rates.IntakeLevel = (s.ps.Measurements.IntakeLevel - s.lastIntakeLevel) / minutes

	s.lastFlow = s.ps.Measurements.InfluentFlow
	s.lastIntakeLevel = s.ps.Measurements.IntakeLevel
}

// updateThresholdAlarms recomputes every threshold-derived flag from the
// current measurements. The scheduler is the sole writer of these.
func (s *Scheduler) updateThresholdAlarms() {
	m := s.ps.Measurements
	limits := s.cfg.Alarms

	s.ps.Alarms.HighIntakeLevel = m.IntakeLevel >= limits.HighIntakeLevel
	s.ps.Alarms.HighBasinLevel = m.BasinLevel >= limits.HighBasinLevel
	s.ps.Alarms.LowPH = m.PH < limits.PHLow
	s.ps.Alarms.HighPH = m.PH > limits.PHHigh
	s.ps.Alarms.LowDO = m.DissolvedOxygen < limits.DOLow
	s.ps.Alarms.HighTurbidity = m.Turbidity > limits.TurbidityHigh
	s.ps.Alarms.LowChlorine = m.ChlorineResidual < limits.ChlorineLow
	s.ps.Alarms.HighChlorine = m.ChlorineResidual > limits.ChlorineHigh
	s.ps.Alarms.HighFilterDP = m.FilterDP >= limits.FilterDPHigh
}

// updateMode applies the operator selection, with the storm overlay
// engaged automatically above the storm flow threshold and released
// below the hysteresis band. Storm is never entered from any selection
// other than Auto.
func (s *Scheduler) updateMode(ctx context.Context) {
	req := s.ps.Inputs.RequestedMode
	if req != plant.ModeAuto {
		s.storm = false
		s.setMode(ctx, req)

		return
	}

	flow := s.ps.Measurements.InfluentFlow
	switch {
	case !s.storm && flow >= s.cfg.Alarms.StormFlow:
		s.storm = true
	case s.storm && flow <= s.cfg.Alarms.StormFlow-s.cfg.Alarms.StormFlowHysteresis:
		s.storm = false
	}

	if s.storm {
		s.setMode(ctx, plant.ModeStorm)
	} else {
		s.setMode(ctx, plant.ModeAuto)
	}
}

func (s *Scheduler) setMode(ctx context.Context, mode plant.OperatingMode) {
	if s.ps.Mode == mode {
		return
	}

	logger.InfoKV(ctx, "Operating mode change",
		"from", s.ps.Mode.String(), "to", mode.String(), "cycle_id", s.ps.CycleID)

	s.ps.Mode = mode
}

// updateSystemState derives the system state for this cycle. Emergency
// latches: once entered it holds until the triggering condition has
// cleared AND the operator asserts Reset in the same or a later cycle.
func (s *Scheduler) updateSystemState(ctx context.Context) {
	condition := s.ps.Inputs.EmergencyStop || s.ps.Alarms.Critical()

	if condition {
		s.emergencyLatched = true
	} else if s.emergencyLatched && s.ps.Inputs.Reset {
		s.emergencyLatched = false

		logger.InfoKV(ctx, "Emergency latch cleared by operator reset",
			"cycle_id", s.ps.CycleID)
	}

	next := plant.StateRunning

	switch {
	case s.emergencyLatched:
		next = plant.StateEmergency
	case s.ps.Alarms.AlarmClass():
		next = plant.StateAlarm
	case s.ps.Alarms.WarningClass():
		next = plant.StateWarning
	}

	if next != s.ps.State {
		logger.InfoKV(ctx, "System state change",
			"from", s.ps.State.String(), "to", next.String(), "cycle_id", s.ps.CycleID)
	}

	s.ps.State = next
}

// dispatch runs the controllers in their fixed order, gated by mode and
// system state, and returns the ones that ran. Process controllers are
// suspended in Emergency (the interlock overrides their outputs anyway)
// and dosing is additionally suspended in Alarm, where pumping chemicals
// against an unreliable reading does more harm than holding. Monitoring
// always runs: observation must not stop when control does.
func (s *Scheduler) dispatch(ctx context.Context) []controller.Controller {
	ran := make([]controller.Controller, 0, 5)
	dt := s.cfg.ScanPeriod

	if s.controlEnabled() {
		if s.ps.State < plant.StateEmergency {
			s.intake.Execute(ctx, dt, &s.ps, &s.cmds)
			ran = append(ran, s.intake)

			s.treatment.Execute(ctx, dt, &s.ps, &s.cmds)
			ran = append(ran, s.treatment)
		}

		if s.ps.State < plant.StateAlarm {
			s.dosing.Execute(ctx, dt, &s.ps, &s.cmds)
			ran = append(ran, s.dosing)
		}

		if s.ps.State < plant.StateEmergency {
			s.aeration.Execute(ctx, dt, &s.ps, &s.cmds)
			ran = append(ran, s.aeration)
		}
	} else {
		// Stopped or Maintenance: no automatic control, everything off.
		s.cmds = plant.ActuatorCommandSet{}
		s.ps.DischargeActive = false
	}

	s.monitoring.Execute(ctx, dt, &s.ps, &s.cmds)
	ran = append(ran, s.monitoring)

	return ran
}

// controlEnabled reports whether automatic control is active in the
// current operating mode.
func (s *Scheduler) controlEnabled() bool {
	return s.ps.Mode == plant.ModeAuto || s.ps.Mode == plant.ModeStorm
}

// collectEvents gathers this cycle's alarm events: the monitoring
// controller's flag-edge events plus the scheduler's own e-stop edge.
func (s *Scheduler) collectEvents() []plant.AlarmEvent {
	events := s.monitoring.Drain()

	if s.ps.Inputs.EmergencyStop && !s.prevEstop {
		events = append(events, plant.AlarmEvent{
			Code:      plant.CodeEmergencyStop,
			CycleID:   s.ps.CycleID,
			Timestamp: s.now(),
		})
	}
	s.prevEstop = s.ps.Inputs.EmergencyStop

	return events
}

// Timers returns every controller timer, oldest subsystem first. Used
// by tests and diagnostics.
func (s *Scheduler) Timers() []*control.Timer {
	var out []*control.Timer
	for _, c := range []controller.Controller{s.intake, s.treatment, s.dosing, s.aeration, s.monitoring} {
		out = append(out, c.Timers()...)
	}

	return out
}
