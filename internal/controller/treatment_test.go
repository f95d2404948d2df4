package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

func treatmentTestConfig() config.Treatment {
	return config.Treatment{
		FillDuration:          3 * time.Second,
		MixDuration:           2 * time.Second,
		SettleDuration:        2 * time.Second,
		TransferDuration:      2 * time.Second,
		MixerOnLevel:          40,
		DischargeMinLevel:     20,
		DischargeMaxLevel:     95,
		DischargePHMin:        6.5,
		DischargePHMax:        8.5,
		DischargeTurbidityMax: 10,
		BackwashInterval:      time.Hour,
		BackwashDrain:         2 * time.Second,
		BackwashRinse:         2 * time.Second,
	}
}

func treatmentTestState() *plant.ProcessState {
	ps := &plant.ProcessState{Mode: plant.ModeAuto, State: plant.StateRunning}
	ps.Measurements.BasinLevel = 50
	ps.Measurements.PH = 7.2
	ps.Measurements.Turbidity = 5

	return ps
}

func TestTreatmentPhaseCycle(t *testing.T) {
	t.Parallel()

	c := NewTreatment(treatmentTestConfig())
	c.Init()
	ps := treatmentTestState()
	cmds := &plant.ActuatorCommandSet{}

	require.Equal(t, PhaseFill, c.Phase())

	var sawMix, sawSettle, sawTransfer bool
	for i := 0; i < 12; i++ {
		before := c.Phase()
		stepController(c, time.Second, ps, cmds)

		switch c.Phase() {
		case PhaseMix:
			sawMix = true
		case PhaseSettle:
			sawSettle = true
		case PhaseTransfer:
			sawTransfer = true
		case PhaseFill:
		}

		// On a cycle without a transition the commands match the phase.
		if before != c.Phase() {
			continue
		}

		switch c.Phase() {
		case PhaseMix:
			require.True(t, cmds.BasinMixerRun)
		case PhaseSettle:
			require.False(t, cmds.BasinMixerRun)
		case PhaseTransfer:
			require.True(t, cmds.TransferValveOpen)
		case PhaseFill:
			require.False(t, cmds.TransferValveOpen)
		}
	}

	require.True(t, sawMix)
	require.True(t, sawSettle)
	require.True(t, sawTransfer)
	// 3+2+2+2 seconds wraps back into fill within 12 cycles.
	require.Equal(t, PhaseFill, c.Phase())
}

func TestTreatmentMixerLevelGate(t *testing.T) {
	t.Parallel()

	c := NewTreatment(treatmentTestConfig())
	c.Init()
	ps := treatmentTestState()
	cmds := &plant.ActuatorCommandSet{}

	ps.Measurements.BasinLevel = 55
	stepController(c, time.Second, ps, cmds)
	require.True(t, cmds.SecondaryMixerRun)

	ps.Measurements.BasinLevel = 30
	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.SecondaryMixerRun)
}

// TestTreatmentDischargePermissives verifies the valve only opens with
// every permissive satisfied, and that a high basin level closes it
// regardless of water quality.
func TestTreatmentDischargePermissives(t *testing.T) {
	t.Parallel()

	c := NewTreatment(treatmentTestConfig())
	c.Init()
	ps := treatmentTestState()
	cmds := &plant.ActuatorCommandSet{}

	stepController(c, time.Second, ps, cmds)
	require.True(t, cmds.DischargeValveOpen)
	require.True(t, ps.DischargeActive)

	// Out-of-band pH closes the valve.
	ps.Measurements.PH = 6.0
	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.DischargeValveOpen)
	require.False(t, ps.DischargeActive)

	// High turbidity closes the valve.
	ps.Measurements.PH = 7.2
	ps.Measurements.Turbidity = 20
	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.DischargeValveOpen)

	// Level below the working minimum closes the valve.
	ps.Measurements.Turbidity = 5
	ps.Measurements.BasinLevel = 10
	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.DischargeValveOpen)

	// Perfect water quality does not matter above the high level limit.
	ps.Measurements.BasinLevel = 96
	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.DischargeValveOpen)
	require.False(t, cmds.TransferValveOpen)
}

// TestTreatmentBackwashPreemptsDischarge verifies a high filter DP runs
// the drain → rinse sequence with the discharge valve held closed.
func TestTreatmentBackwashPreemptsDischarge(t *testing.T) {
	t.Parallel()

	c := NewTreatment(treatmentTestConfig())
	c.Init()
	ps := treatmentTestState()
	cmds := &plant.ActuatorCommandSet{}

	stepController(c, time.Second, ps, cmds)
	require.True(t, cmds.DischargeValveOpen)

	ps.Alarms.HighFilterDP = true
	stepController(c, time.Second, ps, cmds)
	require.Equal(t, BackwashDrain, c.Backwash())
	require.False(t, cmds.DischargeValveOpen)

	ps.Alarms.HighFilterDP = false

	var sawRinse bool
	for i := 0; i < 8; i++ {
		stepController(c, time.Second, ps, cmds)
		if c.Backwash() == BackwashIdle {
			break
		}

		if c.Backwash() == BackwashRinse {
			sawRinse = true
			require.True(t, cmds.BackwashValveOpen)
		}
		require.False(t, cmds.DischargeValveOpen)
	}

	require.True(t, sawRinse)
	require.Equal(t, BackwashIdle, c.Backwash())

	// Discharge resumes once the sequence completes.
	stepController(c, time.Second, ps, cmds)
	require.True(t, cmds.DischargeValveOpen)
	require.False(t, cmds.BackwashValveOpen)
}

func TestTreatmentScheduledBackwash(t *testing.T) {
	t.Parallel()

	cfg := treatmentTestConfig()
	cfg.BackwashInterval = 2 * time.Second

	c := NewTreatment(cfg)
	c.Init()
	ps := treatmentTestState()
	cmds := &plant.ActuatorCommandSet{}

	stepController(c, time.Second, ps, cmds)
	require.Equal(t, BackwashIdle, c.Backwash())

	stepController(c, time.Second, ps, cmds)
	stepController(c, time.Second, ps, cmds)
	require.NotEqual(t, BackwashIdle, c.Backwash())
}
