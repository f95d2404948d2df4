package plant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseOperatingMode verifies operator mode parsing and that Storm is
// rejected as a manual selection.
func TestParseOperatingMode(t *testing.T) {
	t.Parallel()

	cases := map[string]OperatingMode{
		"stopped":       ModeStopped,
		"auto":          ModeAuto,
		" Maintenance ": ModeMaintenance,
	}
	for s, want := range cases {
		got, err := ParseOperatingMode(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseOperatingMode("storm")
	require.Error(t, err)
}

// TestSystemStateOrdering verifies the ordering the controller gates rely on.
func TestSystemStateOrdering(t *testing.T) {
	t.Parallel()

	require.True(t, StateInit < StateRunning)
	require.True(t, StateRunning < StateWarning)
	require.True(t, StateWarning < StateAlarm)
	require.True(t, StateAlarm < StateEmergency)
}

// TestSafeCommands verifies every output is stopped, zero or closed and
// the annunciators are asserted.
func TestSafeCommands(t *testing.T) {
	t.Parallel()

	safe := SafeCommands()

	require.False(t, safe.IntakePumpRun)
	require.Zero(t, safe.IntakePumpSpeed)
	require.False(t, safe.ScreenRakeForward)
	require.False(t, safe.ScreenRakeReverse)
	require.False(t, safe.BasinMixerRun)
	require.False(t, safe.SecondaryMixerRun)
	require.False(t, safe.TransferValveOpen)
	require.False(t, safe.DischargeValveOpen)
	require.False(t, safe.BackwashValveOpen)
	require.False(t, safe.AcidPumpRun)
	require.False(t, safe.BasePumpRun)
	require.Zero(t, safe.AcidDoseRate)
	require.Zero(t, safe.BaseDoseRate)
	require.False(t, safe.DisinfectantPumpRun)
	require.Zero(t, safe.DisinfectantDoseRate)
	require.False(t, safe.BlowerRun)
	require.Zero(t, safe.BlowerSpeed)
	require.True(t, safe.AlarmBeacon)
	require.True(t, safe.AlarmHorn)

	// Idempotent by construction: the set does not depend on prior state.
	require.Equal(t, safe, SafeCommands())
}

// TestAlarmFlagClasses verifies the critical/alarm/warning classification.
func TestAlarmFlagClasses(t *testing.T) {
	t.Parallel()

	var f AlarmFlags
	require.False(t, f.Any())

	f.GasDetected = true
	require.True(t, f.Critical())

	f = AlarmFlags{HighPH: true}
	require.False(t, f.Critical())
	require.True(t, f.AlarmClass())

	f = AlarmFlags{HighTurbidity: true}
	require.False(t, f.AlarmClass())
	require.True(t, f.WarningClass())
	require.True(t, f.Any())
}

// TestProcessStateClone verifies Clone returns an independent copy.
func TestProcessStateClone(t *testing.T) {
	t.Parallel()

	s := &ProcessState{CycleID: 42, State: StateRunning}
	c := s.Clone()

	require.Equal(t, s, c)
	require.NotSame(t, s, c)

	c.CycleID = 43
	require.EqualValues(t, 42, s.CycleID)
}
