package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

func intakeTestConfig() config.Intake {
	return config.Intake{
		PID: control.PIDConfig{
			Kp:            1,
			OutputMax:     100,
			IntegralLimit: 100,
		},
		FlowSetpoint:      50,
		StormFlowSetpoint: 80,
		DerateLevelStart:  80,
		CleanForward:      3 * time.Second,
		CleanPause:        time.Second,
		CleanReverse:      2 * time.Second,
		CleanMaxDuration:  20 * time.Second,
	}
}

func intakeTestState() *plant.ProcessState {
	ps := &plant.ProcessState{Mode: plant.ModeAuto, State: plant.StateRunning}
	ps.Setpoints.Flow = 50
	ps.Setpoints.StormFlow = 80
	ps.Measurements.IntakeLevel = 50

	return ps
}

// stepController executes one cycle and advances the controller's own
// timers, the way the scheduler does.
func stepController(c Controller, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet) {
	c.Execute(context.Background(), dt, ps, cmds)
	for _, tm := range c.Timers() {
		tm.Advance(dt)
	}
}

func TestIntakeFlowControl(t *testing.T) {
	t.Parallel()

	c := NewIntake(intakeTestConfig())
	ps := intakeTestState()
	cmds := &plant.ActuatorCommandSet{}

	// Flow at zero, setpoint 50, Kp 1: pump speed tracks the error.
	stepController(c, time.Second, ps, cmds)
	require.True(t, cmds.IntakePumpRun)
	require.InDelta(t, 50.0, cmds.IntakePumpSpeed, 1e-9)

	// Storm mode raises the setpoint.
	ps.Mode = plant.ModeStorm
	stepController(c, time.Second, ps, cmds)
	require.InDelta(t, 80.0, cmds.IntakePumpSpeed, 1e-9)
}

func TestIntakeSetpointDeratesOnHighLevel(t *testing.T) {
	t.Parallel()

	c := NewIntake(intakeTestConfig())
	ps := intakeTestState()
	cmds := &plant.ActuatorCommandSet{}

	// Level 90 is halfway between derate start (80) and max (100):
	// the 50 setpoint falls to 25.
	ps.Measurements.IntakeLevel = 90
	stepController(c, time.Second, ps, cmds)
	require.InDelta(t, 25.0, cmds.IntakePumpSpeed, 1e-9)

	// At 100 the setpoint is fully derated.
	ps.Measurements.IntakeLevel = 100
	c2 := NewIntake(intakeTestConfig())
	stepController(c2, time.Second, ps, cmds)
	require.InDelta(t, 0.0, cmds.IntakePumpSpeed, 1e-9)
}

// TestIntakeCleaningSequence walks the full Forward → Pause → Reverse
// sequence and verifies a clog flag that stays raised does not retrigger
// cleaning after completion.
func TestIntakeCleaningSequence(t *testing.T) {
	t.Parallel()

	c := NewIntake(intakeTestConfig())
	ps := intakeTestState()
	cmds := &plant.ActuatorCommandSet{}

	stepController(c, time.Second, ps, cmds)
	require.Equal(t, IntakeScreening, c.State())

	// Clog edge enters the forward phase and stops the pump.
	ps.Alarms.ScreenClog = true
	stepController(c, time.Second, ps, cmds)
	require.Equal(t, IntakeCleanForward, c.State())

	stepController(c, time.Second, ps, cmds)
	require.False(t, cmds.IntakePumpRun)
	require.True(t, cmds.ScreenRakeForward)

	// Forward (3s) → Pause (1s) → Reverse (2s) → back to screening.
	var states []IntakeState
	for i := 0; i < 8; i++ {
		stepController(c, time.Second, ps, cmds)
		states = append(states, c.State())
	}
	require.Contains(t, states, IntakeCleanPause)
	require.Contains(t, states, IntakeCleanReverse)
	require.Equal(t, IntakeScreening, c.State())

	// The flag is still raised: no fresh edge, no re-entry.
	stepController(c, time.Second, ps, cmds)
	require.Equal(t, IntakeScreening, c.State())
	require.True(t, cmds.IntakePumpRun)

	// Clearing and raising again is a fresh edge.
	ps.Alarms.ScreenClog = false
	stepController(c, time.Second, ps, cmds)
	ps.Alarms.ScreenClog = true
	stepController(c, time.Second, ps, cmds)
	require.Equal(t, IntakeCleanForward, c.State())
}

// TestIntakeCleaningWatchdog verifies an overrunning sequence aborts to
// screening and raises the timeout flag instead of halting.
func TestIntakeCleaningWatchdog(t *testing.T) {
	t.Parallel()

	cfg := intakeTestConfig()
	cfg.CleanForward = time.Hour // never finishes on its own
	cfg.CleanMaxDuration = 3 * time.Second

	c := NewIntake(cfg)
	ps := intakeTestState()
	cmds := &plant.ActuatorCommandSet{}

	ps.Alarms.ScreenClog = true
	stepController(c, time.Second, ps, cmds)
	require.Equal(t, IntakeCleanForward, c.State())

	for i := 0; i < 4; i++ {
		stepController(c, time.Second, ps, cmds)
	}

	require.Equal(t, IntakeScreening, c.State())
	require.True(t, ps.Alarms.ScreenCleanTimeout)
	require.False(t, cmds.ScreenRakeForward)
	require.False(t, cmds.ScreenRakeReverse)

	// The flag clears when the next cleaning attempt starts.
	ps.Alarms.ScreenClog = false
	stepController(c, time.Second, ps, cmds)
	ps.Alarms.ScreenClog = true
	stepController(c, time.Second, ps, cmds)
	require.False(t, ps.Alarms.ScreenCleanTimeout)
}
