package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-sentinel/diagnosis"
	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

// runOnStores runs the same assertions against both backends. The badger
// instance is in-memory, so tests leave nothing on disk.
func runOnStores(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()

	badgerStore, err := NewBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	memoryStore := NewMemory()
	t.Cleanup(func() { _ = memoryStore.Close() })

	t.Run("badger", func(t *testing.T) { fn(t, badgerStore) })
	t.Run("memory", func(t *testing.T) { fn(t, memoryStore) })
}

func testModel(id, label string, trainedAt time.Time) *gmia.Model {
	return &gmia.Model{
		ID:               id,
		Label:            label,
		Type:             gmia.TypeHealthy,
		WeightVector:     []float64{0.25, 0.25, 0.25, 0.25},
		Regularization:   1.0,
		ScalingConstant:  1.832,
		FeatureDimension: 4,
		SampleRate:       48000,
		FreqMin:          0,
		FreqMax:          8000,
		Meta: gmia.ModelMeta{
			MeanCosineSimilarity: 0.9998,
			TargetScore:          95,
		},
		TrainedAt: trainedAt,
	}
}

func TestMachineLifecycle(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		exists, err := st.MachineExists(ctx, "press-7")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = st.Machine(ctx, "press-7")
		assert.ErrorIs(t, err, ErrNotFound)

		created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		require.NoError(t, st.CreateMachine(ctx, &Machine{
			ID:        "press-7",
			Name:      "Hydraulic press 7",
			Notes:     "north hall",
			CreatedAt: created,
		}))

		exists, err = st.MachineExists(ctx, "press-7")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := st.Machine(ctx, "press-7")
		require.NoError(t, err)
		assert.Equal(t, "Hydraulic press 7", got.Name)
		assert.Equal(t, "north hall", got.Notes)
		assert.True(t, got.CreatedAt.Equal(created))

		err = st.CreateMachine(ctx, &Machine{ID: "press-7"})
		assert.ErrorIs(t, err, ErrExists)
	})
}

func TestMachineIDValidation(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		assert.Error(t, st.CreateMachine(ctx, &Machine{ID: ""}))
		assert.Error(t, st.CreateMachine(ctx, &Machine{ID: "hall/press"}))
		assert.Error(t, st.CreateMachine(ctx, nil))
	})
}

func TestMachinesSortedByID(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		for _, id := range []string{"pump-2", "fan-1", "press-7"} {
			require.NoError(t, st.CreateMachine(ctx, &Machine{ID: id}))
		}

		machines, err := st.Machines(ctx)
		require.NoError(t, err)
		require.Len(t, machines, 3)

		ids := []string{machines[0].ID, machines[1].ID, machines[2].ID}
		assert.Equal(t, []string{"fan-1", "press-7", "pump-2"}, ids)
	})
}

func TestModelRoundTrip(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7"}))

		base := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
		newer := testModel("m-newer", "bearing_wear", base.Add(time.Hour))
		older := testModel("m-older", "baseline", base)

		// Save out of chronological order; listing sorts by TrainedAt.
		require.NoError(t, st.SaveModel(ctx, "press-7", newer))
		require.NoError(t, st.SaveModel(ctx, "press-7", older))

		models, err := st.Models(ctx, "press-7")
		require.NoError(t, err)
		require.Len(t, models, 2)
		assert.Equal(t, "baseline", models[0].Label)
		assert.Equal(t, "bearing_wear", models[1].Label)

		got := models[0]
		assert.Equal(t, older.WeightVector, got.WeightVector)
		assert.Equal(t, older.ScalingConstant, got.ScalingConstant)
		assert.Equal(t, older.Meta, got.Meta)
		assert.True(t, got.TrainedAt.Equal(older.TrainedAt))

		require.NoError(t, st.DeleteModel(ctx, "press-7", "m-older"))
		models, err = st.Models(ctx, "press-7")
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.Equal(t, "m-newer", models[0].ID)

		err = st.DeleteModel(ctx, "press-7", "m-older")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSaveModelRequiresID(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		assert.Error(t, st.SaveModel(ctx, "press-7", &gmia.Model{}))
		assert.Error(t, st.SaveModel(ctx, "press-7", nil))
	})
}

func TestReferenceRoundTrip(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7"}))

		frames, err := st.Reference(ctx, "press-7")
		require.NoError(t, err)
		assert.Nil(t, frames)

		want := []*feature.Vector{
			feature.New([]float64{1, 2, 3, 4}, 48000, 0, 8000, 0.5),
			feature.New([]float64{4, 3, 2, 1}, 48000, 0, 8000, 0.4),
		}
		require.NoError(t, st.SaveReference(ctx, "press-7", want))

		got, err := st.Reference(ctx, "press-7")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, want[0].Relative, got[0].Relative)
		assert.Equal(t, want[1].Absolute, got[1].Absolute)
		assert.Equal(t, want[0].SampleRate, got[0].SampleRate)

		// A second training run replaces the session outright.
		replacement := []*feature.Vector{
			feature.New([]float64{9, 9, 9, 9}, 48000, 0, 8000, 0.9),
		}
		require.NoError(t, st.SaveReference(ctx, "press-7", replacement))
		got, err = st.Reference(ctx, "press-7")
		require.NoError(t, err)
		require.Len(t, got, 1)
	})
}

func TestCalibrationRoundTrip(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7"}))

		est, err := st.Calibration(ctx, "press-7")
		require.NoError(t, err)
		assert.Nil(t, est)

		measured := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
		want := &roomcomp.T60Estimate{
			Broadband:  0.82,
			Subbands:   map[int]float64{250: 0.95, 1000: 0.82, 4000: 0.61},
			MeasuredAt: measured,
		}
		require.NoError(t, st.SaveCalibration(ctx, "press-7", want))

		got, err := st.Calibration(ctx, "press-7")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Broadband, got.Broadband)
		assert.Equal(t, want.Subbands, got.Subbands)
		assert.True(t, got.MeasuredAt.Equal(measured))
	})
}

func TestResultsNewestFirst(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7"}))

		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		for i, score := range []float64{91, 88, 85} {
			r := &diagnosis.Result{
				ID:          "r-" + string(rune('a'+i)),
				MachineID:   "press-7",
				Score:       score,
				Status:      gmia.StatusHealthy,
				Label:       "baseline",
				Frames:      14,
				CompletedAt: base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, st.SaveResult(ctx, "press-7", r))
		}

		all, err := st.Results(ctx, "press-7", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, 85.0, all[0].Score)
		assert.Equal(t, 91.0, all[2].Score)

		recent, err := st.Results(ctx, "press-7", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "r-c", recent[0].ID)
		assert.Equal(t, "r-b", recent[1].ID)
	})
}

func TestDeleteMachineCascades(t *testing.T) {
	runOnStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7"}))
		require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "pump-2"}))

		trained := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
		require.NoError(t, st.SaveModel(ctx, "press-7", testModel("m-1", "baseline", trained)))
		require.NoError(t, st.SaveModel(ctx, "pump-2", testModel("m-2", "baseline", trained)))
		require.NoError(t, st.SaveReference(ctx, "press-7", []*feature.Vector{
			feature.New([]float64{1, 2, 3, 4}, 48000, 0, 8000, 0.5),
		}))
		require.NoError(t, st.SaveCalibration(ctx, "press-7", &roomcomp.T60Estimate{Broadband: 0.5}))
		require.NoError(t, st.SaveResult(ctx, "press-7", &diagnosis.Result{
			ID: "r-1", MachineID: "press-7", CompletedAt: trained,
		}))

		require.NoError(t, st.DeleteMachine(ctx, "press-7"))

		exists, err := st.MachineExists(ctx, "press-7")
		require.NoError(t, err)
		assert.False(t, exists)

		models, err := st.Models(ctx, "press-7")
		require.NoError(t, err)
		assert.Empty(t, models)

		frames, err := st.Reference(ctx, "press-7")
		require.NoError(t, err)
		assert.Nil(t, frames)

		est, err := st.Calibration(ctx, "press-7")
		require.NoError(t, err)
		assert.Nil(t, est)

		results, err := st.Results(ctx, "press-7", 0)
		require.NoError(t, err)
		assert.Empty(t, results)

		// The neighbor is untouched.
		models, err = st.Models(ctx, "pump-2")
		require.NoError(t, err)
		assert.Len(t, models, 1)

		err = st.DeleteMachine(ctx, "press-7")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBadgerRequiresDir(t *testing.T) {
	_, err := NewBadger(BadgerOptions{})
	assert.Error(t, err)
}

func TestBadgerPersistsToDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, st.CreateMachine(ctx, &Machine{ID: "press-7", Name: "Hydraulic press 7"}))
	require.NoError(t, st.Close())

	st, err = NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	defer st.Close()

	got, err := st.Machine(ctx, "press-7")
	require.NoError(t, err)
	assert.Equal(t, "Hydraulic press 7", got.Name)
}
