package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/domain/plant"
)

func event(cycle uint64) plant.AlarmEvent {
	return plant.AlarmEvent{
		Code:      plant.CodeScreenClog,
		CycleID:   cycle,
		Timestamp: time.Unix(int64(cycle), 0),
	}
}

// TestAppendAndSnapshot verifies ordering and copy semantics.
func TestAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	l := New(4)
	for i := uint64(1); i <= 3; i++ {
		l.Append(event(i))
	}

	require.Equal(t, 3, l.Len())

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	for i, evt := range snap {
		require.EqualValues(t, i+1, evt.CycleID)
	}

	// Mutating the snapshot must not affect the ring.
	snap[0].CycleID = 999
	require.EqualValues(t, 1, l.Snapshot()[0].CycleID)
}

// TestEvictionKeepsNewest verifies the oldest entries are evicted on
// overflow and cycle ids remain non-decreasing.
func TestEvictionKeepsNewest(t *testing.T) {
	t.Parallel()

	l := New(3)
	for i := uint64(1); i <= 10; i++ {
		l.Append(event(i))
	}

	require.Equal(t, 3, l.Len())
	require.Equal(t, 3, l.Capacity())

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	require.EqualValues(t, 8, snap[0].CycleID)
	require.EqualValues(t, 10, snap[2].CycleID)

	for i := 1; i < len(snap); i++ {
		require.GreaterOrEqual(t, snap[i].CycleID, snap[i-1].CycleID)
	}
}

// TestDefaultCapacity verifies the fallback when no capacity is given.
func TestDefaultCapacity(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultCapacity, New(0).Capacity())
	require.Equal(t, DefaultCapacity, New(-5).Capacity())
}
