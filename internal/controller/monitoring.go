package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/logger"
)

// monitorCategory is one slice of the round-robin check schedule.
type monitorCategory int

const (
	checkPH monitorCategory = iota
	checkDO
	checkTurbidity
	checkGas
	checkFlowAnomaly
	checkSystemStatus

	monitorCategoryCount
)

// Monitoring spreads its checks across cycles: exactly one category runs
// per scan, so a full sweep takes six cycles. It owns the FlowAnomaly
// flag and the compliance verdict, and records a log event for every
// false→true transition of any alarm flag; the scheduler drains the
// recorded events into the bounded ring after the controller runs.
type Monitoring struct {
	cfg config.Monitoring

	category monitorCategory
	// prev holds last cycle's flags for edge detection.
	prev          plant.AlarmFlags
	prevCompliant bool
	pending       []plant.AlarmEvent

	now func() time.Time
}

// NewMonitoring returns a monitoring controller starting at the pH check.
func NewMonitoring(cfg config.Monitoring) *Monitoring {
	return &Monitoring{
		cfg:           cfg,
		prevCompliant: true,
		now:           time.Now,
	}
}

// Name implements Controller.
func (c *Monitoring) Name() string { return "monitoring" }

// Timers implements Controller.
func (c *Monitoring) Timers() []*control.Timer { return nil }

// Drain returns the alarm events recorded since the previous drain and
// clears the pending list.
func (c *Monitoring) Drain() []plant.AlarmEvent {
	events := c.pending
	c.pending = nil

	return events
}

// Execute implements Controller. Monitoring runs every cycle, in every
// system state: observation must not stop when control does.
func (c *Monitoring) Execute(ctx context.Context, _ time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	switch c.category {
	case checkPH:
		// Threshold flags are derived by the scheduler; the category
		// sweep only decides when the compliance verdict re-evaluates
		// each contributor.
	case checkDO:
	case checkTurbidity:
	case checkGas:
	case checkFlowAnomaly:
		c.checkFlowAnomaly(ctx, ps, cmds)
	case checkSystemStatus:
		c.logSystemStatus(ctx, ps)
	}

	c.category = (c.category + 1) % monitorCategoryCount

	c.updateCompliance(ctx, ps)
	c.recordEdges(ps)

	// Annunciators: monitoring owns them outside Emergency (the interlock
	// asserts both while the safe set is forced).
	cmds.AlarmBeacon = ps.Alarms.Any() || ps.State >= plant.StateAlarm
	cmds.AlarmHorn = ps.State >= plant.StateEmergency
}

// checkFlowAnomaly flags a commanded-but-absent flow: pump driven above
// the minimum speed while measured flow stays near zero. Indicates a
// blocked line, a failed pump, or a dead flow transmitter.
func (c *Monitoring) checkFlowAnomaly(ctx context.Context, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	anomaly := cmds.IntakePumpRun &&
		cmds.IntakePumpSpeed >= c.cfg.AnomalyMinSpeed &&
		ps.Measurements.InfluentFlow < c.cfg.AnomalyMinFlow

	if anomaly && !ps.Alarms.FlowAnomaly {
		logger.WarnKV(ctx, "Flow anomaly detected",
			"pump_speed", cmds.IntakePumpSpeed,
			"influent_flow", ps.Measurements.InfluentFlow,
			"cycle_id", ps.CycleID)
	}

	ps.Alarms.FlowAnomaly = anomaly
}

// updateCompliance computes the discharge compliance verdict. While the
// discharge path is closed the plant is trivially compliant; while open,
// every registered limit must hold.
func (c *Monitoring) updateCompliance(ctx context.Context, ps *plant.ProcessState) {
	compliant := true

	if ps.DischargeActive {
		m := ps.Measurements
		compliant = m.PH >= c.cfg.PHMin && m.PH <= c.cfg.PHMax &&
			m.Turbidity <= c.cfg.TurbidityMax &&
			m.ChlorineResidual >= c.cfg.ChlorineMin &&
			m.ChlorineResidual <= c.cfg.ChlorineMax
	}

	if c.prevCompliant && !compliant {
		c.pending = append(c.pending, plant.AlarmEvent{
			Code:      plant.CodeNonCompliant,
			CycleID:   ps.CycleID,
			Timestamp: c.now(),
		})

		logger.WarnKV(ctx, "Discharge out of compliance", "cycle_id", ps.CycleID)
	}

	c.prevCompliant = compliant
	ps.Compliant = compliant
}

// logSystemStatus periodically records the aggregate state for the
// operator log.
func (c *Monitoring) logSystemStatus(ctx context.Context, ps *plant.ProcessState) {
	logger.DebugKV(ctx, "System status",
		"mode", ps.Mode.String(),
		"state", ps.State.String(),
		"discharge_active", ps.DischargeActive,
		"compliant", ps.Compliant,
		"alarms_active", ps.Alarms.Any(),
		"cycle_id", ps.CycleID)
}

// recordEdges appends one event per alarm flag false→true transition.
func (c *Monitoring) recordEdges(ps *plant.ProcessState) {
	cur := ps.Alarms

	for _, e := range []struct {
		prev, cur bool
		code      plant.AlarmCode
	}{
		{c.prev.ScreenClog, cur.ScreenClog, plant.CodeScreenClog},
		{c.prev.HighIntakeLevel, cur.HighIntakeLevel, plant.CodeHighIntakeLevel},
		{c.prev.HighBasinLevel, cur.HighBasinLevel, plant.CodeHighBasinLevel},
		{c.prev.LowPH, cur.LowPH, plant.CodeLowPH},
		{c.prev.HighPH, cur.HighPH, plant.CodeHighPH},
		{c.prev.LowDO, cur.LowDO, plant.CodeLowDO},
		{c.prev.HighTurbidity, cur.HighTurbidity, plant.CodeHighTurbidity},
		{c.prev.LowChlorine, cur.LowChlorine, plant.CodeLowChlorine},
		{c.prev.HighChlorine, cur.HighChlorine, plant.CodeHighChlorine},
		{c.prev.HighFilterDP, cur.HighFilterDP, plant.CodeHighFilterDP},
		{c.prev.GasDetected, cur.GasDetected, plant.CodeGasDetected},
		{c.prev.SensorRangeFault, cur.SensorRangeFault, plant.CodeSensorRangeFault},
		{c.prev.ScreenCleanTimeout, cur.ScreenCleanTimeout, plant.CodeScreenCleanTimeout},
		{c.prev.FlowAnomaly, cur.FlowAnomaly, plant.CodeFlowAnomaly},
	} {
		if e.cur && !e.prev {
			c.pending = append(c.pending, plant.AlarmEvent{
				Code:      e.code,
				CycleID:   ps.CycleID,
				Timestamp: c.now(),
			})
		}
	}

	c.prev = cur
}
