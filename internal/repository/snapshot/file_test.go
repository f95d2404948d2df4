package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/plant-controller/internal/domain/plant"
)

func TestFileRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	ps := &plant.ProcessState{
		CycleID: 1234,
		Mode:    plant.ModeAuto,
		State:   plant.StateWarning,
	}
	ps.Measurements.PH = 7.3
	ps.Measurements.InfluentFlow = 180.5
	ps.Alarms.HighTurbidity = true
	ps.Compliant = true

	require.NoError(t, repo.Save(ps))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, ps, loaded)
}

func TestFileRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	_, err := repo.Load()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileRepositoryOverwrite(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	first := &plant.ProcessState{CycleID: 1}
	require.NoError(t, repo.Save(first))

	second := &plant.ProcessState{CycleID: 2, State: plant.StateRunning}
	require.NoError(t, repo.Save(second))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(2), loaded.CycleID)
}

func TestFileRepositoryRejectsGarbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	repo := NewFileRepository(path)
	require.NoError(t, repo.Save(&plant.ProcessState{CycleID: 7}))

	// Corrupt the file in place.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := repo.Load()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
