package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/eventlog"
	"github.com/avolkov/plant-controller/internal/ingest"
)

// stubSource hands the scheduler a settable raw snapshot.
type stubSource struct {
	snap ingest.RawSnapshot
	ok   bool
}

func (s *stubSource) Next(_ context.Context) (ingest.RawSnapshot, bool) {
	return s.snap, s.ok
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ScanPeriod = time.Second
	cfg.SnapshotFile = ""
	cfg.MetricsAddress = ""

	return cfg
}

// encode converts an engineering value to raw counts under a channel
// scaling contract.
func encode(eng float64, ch config.ChannelScale) float64 {
	span := ch.EngMax - ch.EngMin
	if span == 0 {
		return eng
	}

	return ch.RawMin + (eng-ch.EngMin)/span*(ch.RawMax-ch.RawMin)
}

// healthyRaw returns a snapshot with every channel mid-range and no
// digital faults.
func healthyRaw(cfg *config.Config) ingest.RawSnapshot {
	s := cfg.Scaling

	return ingest.RawSnapshot{
		Flow:        encode(150, s.Flow),
		IntakeLevel: encode(50, s.IntakeLevel),
		BasinLevel:  encode(50, s.BasinLevel),
		PH:          encode(7.2, s.PH),
		DO:          encode(2.0, s.DO),
		Turbidity:   encode(8, s.Turbidity),
		Chlorine:    encode(1.0, s.Chlorine),
		Temperature: encode(15, s.Temperature),
		FilterDP:    encode(20, s.FilterDP),
		SupplyLevel: encode(90, s.SupplyLevel),
	}
}

func newTestScheduler(cfg *config.Config, src *stubSource) (*Scheduler, *eventlog.Log) {
	events := eventlog.New(cfg.EventLogCapacity)
	s := New(cfg, src, events)
	s.Init(context.Background())

	return s, events
}

// TestSchedulerEmergencyStopSameCycle verifies an asserted e-stop reaches
// the published outputs within the very cycle that reads it: the state
// derives to Emergency before dispatch, controllers are skipped, and the
// interlock forces the safe command set.
func TestSchedulerEmergencyStopSameCycle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	src.snap.EmergencyStop = true

	s, events := newTestScheduler(cfg, src)
	s.Step(context.Background())

	require.Equal(t, plant.StateEmergency, s.State().State)
	require.Equal(t, plant.SafeCommands(), s.Commands())

	recorded := events.Snapshot()
	require.Len(t, recorded, 1)
	require.Equal(t, plant.CodeEmergencyStop, recorded[0].Code)
	require.Equal(t, uint64(1), recorded[0].CycleID)
}

// TestSchedulerEmergencyLatch verifies Emergency holds after the e-stop
// releases and clears only on an operator reset.
func TestSchedulerEmergencyLatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	src.snap.EmergencyStop = true

	s, _ := newTestScheduler(cfg, src)
	s.Step(context.Background())
	require.Equal(t, plant.StateEmergency, s.State().State)

	// Condition gone, no reset: still latched.
	src.snap.EmergencyStop = false
	s.Step(context.Background())
	s.Step(context.Background())
	require.Equal(t, plant.StateEmergency, s.State().State)
	require.Equal(t, plant.SafeCommands(), s.Commands())

	// Reset asserted: the latch clears and control resumes in the same
	// cycle.
	src.snap.Reset = true
	s.Step(context.Background())
	require.Equal(t, plant.StateRunning, s.State().State)
	require.False(t, s.Commands().AlarmBeacon)
	require.True(t, s.Commands().DischargeValveOpen)
}

// TestSchedulerGasDetectedEscalates verifies the critical gas flag
// drives Emergency without the e-stop.
func TestSchedulerGasDetectedEscalates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	src.snap.GasDetected = true

	s, events := newTestScheduler(cfg, src)
	s.Step(context.Background())

	require.Equal(t, plant.StateEmergency, s.State().State)
	require.Equal(t, plant.SafeCommands(), s.Commands())

	codes := make([]plant.AlarmCode, 0, 1)
	for _, evt := range events.Snapshot() {
		codes = append(codes, evt.Code)
	}
	require.Contains(t, codes, plant.CodeGasDetected)
}

// TestSchedulerStormHysteresis verifies Storm engages above the storm
// flow, survives inside the hysteresis band, and releases below it.
func TestSchedulerStormHysteresis(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	s, _ := newTestScheduler(cfg, src)

	s.Step(context.Background())
	require.Equal(t, plant.ModeAuto, s.State().Mode)

	// 400 m³/h is past the 350 threshold.
	src.snap.Flow = encode(400, cfg.Scaling.Flow)
	s.Step(context.Background())
	require.Equal(t, plant.ModeStorm, s.State().Mode)

	// 320 is below the threshold but inside the 50-wide band: hold Storm.
	src.snap.Flow = encode(320, cfg.Scaling.Flow)
	s.Step(context.Background())
	require.Equal(t, plant.ModeStorm, s.State().Mode)

	// 290 is below threshold minus hysteresis: back to Auto.
	src.snap.Flow = encode(290, cfg.Scaling.Flow)
	s.Step(context.Background())
	require.Equal(t, plant.ModeAuto, s.State().Mode)
}

// TestSchedulerDosingSuspendedInAlarm verifies the dosing controller is
// skipped while the system state is Alarm, leaving its outputs untouched.
func TestSchedulerDosingSuspendedInAlarm(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	// pH 9.5 is past the high alarm threshold and would demand acid.
	src.snap.PH = encode(9.5, cfg.Scaling.PH)

	s, _ := newTestScheduler(cfg, src)

	for i := 0; i < 5; i++ {
		s.Step(context.Background())
	}

	require.Equal(t, plant.StateAlarm, s.State().State)
	require.True(t, s.State().Alarms.HighPH)

	// Dosing never ran: no acid command despite the excursion. Intake
	// keeps running.
	require.False(t, s.Commands().AcidPumpRun)
	require.Zero(t, s.Commands().AcidDoseRate)
	require.True(t, s.Commands().IntakePumpRun)
}

// TestSchedulerWarningState verifies warning-class flags classify the
// state without suspending any controller.
func TestSchedulerWarningState(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	src.snap.Turbidity = encode(50, cfg.Scaling.Turbidity)

	s, _ := newTestScheduler(cfg, src)

	for i := 0; i < 3; i++ {
		s.Step(context.Background())
	}

	st := s.State()
	require.Equal(t, plant.StateWarning, st.State)
	require.True(t, st.Alarms.HighTurbidity)
	require.True(t, s.Commands().IntakePumpRun)
}

// TestSchedulerSensorFaultHoldsLastValue verifies an out-of-range channel
// raises the range fault and the measurement holds its last valid value.
func TestSchedulerSensorFaultHoldsLastValue(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	s, _ := newTestScheduler(cfg, src)

	s.Step(context.Background())
	require.InDelta(t, 7.2, s.State().Measurements.PH, 0.01)

	src.snap.PH = cfg.Scaling.PH.RawMax + 1000
	s.Step(context.Background())

	st := s.State()
	require.True(t, st.Alarms.SensorRangeFault)
	require.InDelta(t, 7.2, st.Measurements.PH, 0.01)
	require.Equal(t, plant.StateWarning, st.State)
}

// TestSchedulerStoppedMode verifies no automatic control in Stopped mode.
func TestSchedulerStoppedMode(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Mode = "stopped"
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	s, _ := newTestScheduler(cfg, src)

	for i := 0; i < 3; i++ {
		s.Step(context.Background())
	}

	require.Equal(t, plant.ModeStopped, s.State().Mode)
	require.Equal(t, plant.ActuatorCommandSet{}, s.Commands())
}

// TestSchedulerCycleIDAndQuietCycles verifies the cycle counter is
// monotonic and a source with no fresh snapshot keeps last measurements.
func TestSchedulerCycleIDAndQuietCycles(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	s, _ := newTestScheduler(cfg, src)

	s.Step(context.Background())
	require.Equal(t, uint64(1), s.State().CycleID)

	// Source goes quiet: the loop keeps cycling on held values.
	src.ok = false
	s.Step(context.Background())
	s.Step(context.Background())

	st := s.State()
	require.Equal(t, uint64(3), st.CycleID)
	require.InDelta(t, 150.0, st.Measurements.InfluentFlow, 0.1)
}

// capturingPublisher records the snapshots it receives.
type capturingPublisher struct {
	snaps []CycleSnapshot
}

func (p *capturingPublisher) PublishCycle(_ context.Context, snap CycleSnapshot) {
	p.snaps = append(p.snaps, snap)
}

// TestSchedulerPublishesEveryCycle verifies each cycle hands publishers a
// private state clone and the cycle's new events.
func TestSchedulerPublishesEveryCycle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	pub := &capturingPublisher{}

	events := eventlog.New(cfg.EventLogCapacity)
	s := New(cfg, src, events, pub)
	s.Init(context.Background())

	s.Step(context.Background())
	src.snap.GasDetected = true
	s.Step(context.Background())

	require.Len(t, pub.snaps, 2)
	require.Equal(t, uint64(1), pub.snaps[0].State.CycleID)
	require.Equal(t, uint64(2), pub.snaps[1].State.CycleID)

	// The gas event arrived with the cycle that observed it.
	require.Empty(t, pub.snaps[0].Events)
	require.NotEmpty(t, pub.snaps[1].Events)

	// Clones: mutating a published state does not touch the live one.
	pub.snaps[1].State.Measurements.PH = 0
	require.InDelta(t, 7.2, s.State().Measurements.PH, 0.01)
}

// TestSchedulerEventRingBounded verifies the ring evicts oldest events
// under a flood.
func TestSchedulerEventRingBounded(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EventLogCapacity = 4
	src := &stubSource{snap: healthyRaw(cfg), ok: true}
	s, events := newTestScheduler(cfg, src)

	// Toggle the clog input so every other cycle produces a fresh edge.
	for i := 0; i < 20; i++ {
		src.snap.ScreenClog = i%2 == 0
		s.Step(context.Background())
	}

	require.Equal(t, 4, events.Len())

	recorded := events.Snapshot()
	for i := 1; i < len(recorded); i++ {
		require.GreaterOrEqual(t, recorded[i].CycleID, recorded[i-1].CycleID)
	}
}
