package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/config"
)

func testScaling() config.Scaling {
	cfg := config.Default().Scaling

	return cfg
}

// fullScale fills every analog channel at the given fraction of its raw span.
func fullScale(frac float64) RawSnapshot {
	raw := 65535 * frac

	return RawSnapshot{
		Flow: raw, IntakeLevel: raw, BasinLevel: raw, PH: raw, DO: raw,
		Turbidity: raw, Chlorine: raw, Temperature: raw, FilterDP: raw,
		SupplyLevel: raw,
	}
}

// TestScaleMapsRawToEngineering verifies the linear scaling contract.
func TestScaleMapsRawToEngineering(t *testing.T) {
	t.Parallel()

	s := NewScaler(testScaling())

	m, fault := s.Scale(fullScale(0.5))
	require.False(t, fault)
	require.InDelta(t, 250, m.InfluentFlow, 0.01)   // 0..500 m³/h
	require.InDelta(t, 50, m.IntakeLevel, 0.01)     // 0..100 %
	require.InDelta(t, 7, m.PH, 0.01)               // 0..14
	require.InDelta(t, 20, m.Temperature, 0.01)     // -10..50 °C
}

// TestScaleRangeFaultHoldsLastValid verifies an out-of-range raw
// value flags a fault and the channel keeps its last valid value.
func TestScaleRangeFaultHoldsLastValid(t *testing.T) {
	t.Parallel()

	s := NewScaler(testScaling())

	m, fault := s.Scale(fullScale(0.5))
	require.False(t, fault)
	held := m.PH

	bad := fullScale(0.5)
	bad.PH = -100 // below RawMin
	m, fault = s.Scale(bad)
	require.True(t, fault)
	require.Equal(t, held, m.PH)
	// Other channels are unaffected.
	require.InDelta(t, 250, m.InfluentFlow, 0.01)

	// Recovery: back in range clears the fault and tracks again.
	good := fullScale(0.25)
	m, fault = s.Scale(good)
	require.False(t, fault)
	require.InDelta(t, 3.5, m.PH, 0.01)
}

// TestScaleFirstSnapshotClamps verifies the first snapshot is clamped
// instead of held, so the loop never starts on zeroed garbage.
func TestScaleFirstSnapshotClamps(t *testing.T) {
	t.Parallel()

	s := NewScaler(testScaling())

	bad := fullScale(0.5)
	bad.DO = 70000 // above RawMax
	m, fault := s.Scale(bad)
	require.True(t, fault)
	require.InDelta(t, 20, m.DissolvedOxygen, 0.01) // clamped to EngMax
}
