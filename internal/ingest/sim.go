package ingest

import (
	"context"
	"math"
	"sync"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

// SimSource is a deterministic first-order plant model for development
// mode: flow follows the intake pump, DO follows the blower, pH drifts
// acid and responds to dosing, levels integrate flow. It produces raw
// counts under the same scaling contract the core decodes with, so the
// whole loop can be exercised without field hardware.
type SimSource struct {
	cfg config.Scaling
	dt  float64 // seconds per cycle

	mu   sync.Mutex
	cmds plant.ActuatorCommandSet

	// Engineering-unit process variables.
	flow        float64
	intakeLevel float64
	basinLevel  float64
	ph          float64
	do          float64
	turbidity   float64
	chlorine    float64
	temperature float64
	filterDP    float64
	supplyLevel float64

	cycle uint64
}

// NewSimSource returns a simulator with plausible initial conditions.
func NewSimSource(cfg config.Scaling, scanSeconds float64) *SimSource {
	return &SimSource{
		cfg:         cfg,
		dt:          scanSeconds,
		intakeLevel: 50,
		basinLevel:  45,
		ph:          7.2,
		do:          2.0,
		turbidity:   8,
		chlorine:    1.0,
		temperature: 15,
		filterDP:    20,
		supplyLevel: 90,
	}
}

// Feed gives the simulator the actuator commands published last cycle.
func (s *SimSource) Feed(cmds plant.ActuatorCommandSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cmds = cmds
}

// Next advances the model by one scan tick and returns the raw snapshot.
func (s *SimSource) Next(_ context.Context) (RawSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycle++
	s.step()

	return RawSnapshot{
		Flow:        s.encode(s.flow, s.cfg.Flow),
		IntakeLevel: s.encode(s.intakeLevel, s.cfg.IntakeLevel),
		BasinLevel:  s.encode(s.basinLevel, s.cfg.BasinLevel),
		PH:          s.encode(s.ph, s.cfg.PH),
		DO:          s.encode(s.do, s.cfg.DO),
		Turbidity:   s.encode(s.turbidity, s.cfg.Turbidity),
		Chlorine:    s.encode(s.chlorine, s.cfg.Chlorine),
		Temperature: s.encode(s.temperature, s.cfg.Temperature),
		FilterDP:    s.encode(s.filterDP, s.cfg.FilterDP),
		SupplyLevel: s.encode(s.supplyLevel, s.cfg.SupplyLevel),
	}, true
}

// step integrates the first-order responses for one tick.
func (s *SimSource) step() {
	dt := s.dt

	// Flow tracks pump speed with a short time constant.
	targetFlow := 0.0
	if s.cmds.IntakePumpRun {
		targetFlow = s.cmds.IntakePumpSpeed / 100 * 400
	}
	s.flow += (targetFlow - s.flow) * math.Min(1, dt/5)

	// Intake level falls as the pump draws down, refills from the sewer.
	inflow := 180 + 40*math.Sin(float64(s.cycle)*dt/120)
	s.intakeLevel += (inflow - s.flow) * dt / 600
	s.intakeLevel = clampPct(s.intakeLevel)

	// Basin fills from intake flow, drains through transfer/discharge.
	fill := s.flow * dt / 900
	if s.cmds.TransferValveOpen || s.cmds.DischargeValveOpen {
		fill -= 25 * dt / 600
	}
	s.basinLevel = clampPct(s.basinLevel + fill)

	// pH drifts acid; base dosing raises it, acid dosing lowers it.
	s.ph -= 0.002 * dt
	if s.cmds.BasePumpRun {
		s.ph += s.cmds.BaseDoseRate / 100 * 0.05 * dt
	}
	if s.cmds.AcidPumpRun {
		s.ph -= s.cmds.AcidDoseRate / 100 * 0.05 * dt
	}

	// DO decays to the biological demand floor, aeration pushes it up.
	s.do -= 0.05 * dt
	if s.cmds.BlowerRun {
		s.do += s.cmds.BlowerSpeed / 100 * 0.15 * dt
	}
	s.do = math.Max(0, s.do)

	// Chlorine residual decays, disinfectant dosing replenishes it.
	s.chlorine -= 0.01 * dt
	if s.cmds.DisinfectantPumpRun {
		s.chlorine += s.cmds.DisinfectantDoseRate / 100 * 0.08 * dt
		s.supplyLevel = math.Max(0, s.supplyLevel-s.cmds.DisinfectantDoseRate/100*0.02*dt)
	}
	s.chlorine = math.Max(0, s.chlorine)

	// Filter fouls slowly while discharging, backwash relieves it.
	if s.cmds.DischargeValveOpen {
		s.filterDP += 0.05 * dt
	}
	if s.cmds.BackwashValveOpen {
		s.filterDP = math.Max(10, s.filterDP-2*dt)
	}
}

// encode converts an engineering value back to raw counts.
func (s *SimSource) encode(eng float64, ch config.ChannelScale) float64 {
	span := ch.EngMax - ch.EngMin
	if span == 0 {
		return eng
	}

	return ch.RawMin + (eng-ch.EngMin)/span*(ch.RawMax-ch.RawMin)
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
