package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spotcall/internal/iss/l2codes"
	"github.com/banshee-data/spotcall/internal/testutil"
	"github.com/banshee-data/spotcall/internal/timeutil"
)

// setupSpotStore returns a store on a freshly migrated temp database.
func setupSpotStore(t *testing.T) (*SpotStore, *sql.DB) {
	t.Helper()
	database := testutil.MigratedDB(t)
	return NewSpotStore(database.DB), database.DB
}

func testRun() Run {
	return Run{
		GeneNames:       []string{"g0", "g1", "g2"},
		NChannels:       2,
		ParamsJSON:      json.RawMessage(`{"dp_thresh":0.225}`),
		IntensityThresh: 0.05,
		DuplicateRule:   "nearest_centre",
	}
}

// testSpots returns four spots; spot i has gene i%3 and coefficient i+1 on
// that gene plus a background coefficient.
func testSpots() []Spot {
	spots := make([]Spot, 4)
	for i := range spots {
		g := i % 3
		spots[i] = Spot{
			Tile:       i / 2,
			Y:          float64(10 * i),
			X:          float64(i),
			Z:          1,
			Gene:       g,
			Score:      0.5,
			Intensity:  float64(i) + 0.25,
			NGenes:     1,
			StopStage:  3,
			StopReason: "threshold",
			Coefs:      l2codes.SparseRow{Indices: []int{g, 3}, Values: []float64{float64(i + 1), 0.1}},
		}
	}
	return spots
}

func countRows(t *testing.T, sqlDB *sql.DB, table, runID string) int {
	t.Helper()
	var n int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, runID).Scan(&n))
	return n
}

func TestSpotStore_SaveAndLoad(t *testing.T) {
	store, _ := setupSpotStore(t)
	ctx := context.Background()

	saved, err := store.SaveRun(ctx, testRun(), testSpots(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.RunID)
	assert.NotZero(t, saved.CreatedAt)
	assert.Equal(t, 4, saved.NSpots)

	got, err := store.GetRun(ctx, saved.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"g0", "g1", "g2"}, got.GeneNames)
	assert.Equal(t, 5, got.Columns().Width())
	assert.JSONEq(t, `{"dp_thresh":0.225}`, string(got.ParamsJSON))
	assert.Equal(t, "nearest_centre", got.DuplicateRule)

	spots, err := store.LoadSpots(ctx, saved.RunID)
	require.NoError(t, err)
	assert.Equal(t, testSpots(), spots)
}

func TestSpotStore_CreatedAtFromClock(t *testing.T) {
	store, _ := setupSpotStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.WithClock(timeutil.NewMockClock(at))

	saved, err := store.SaveRun(context.Background(), testRun(), testSpots(), nil)
	require.NoError(t, err)
	got, err := store.GetRun(context.Background(), saved.RunID)
	require.NoError(t, err)
	assert.Equal(t, at.UnixNano(), got.CreatedAt)
}

func TestSpotStore_SaveWithKeepMask(t *testing.T) {
	store, sqlDB := setupSpotStore(t)
	ctx := context.Background()

	saved, err := store.SaveRun(ctx, testRun(), testSpots(), []bool{false, true, false, true})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.NSpots)
	assert.Equal(t, 2, countRows(t, sqlDB, "omp_spot_info", saved.RunID))
	assert.Equal(t, 4, countRows(t, sqlDB, "omp_spot_coefs", saved.RunID))

	spots, err := store.LoadSpots(ctx, saved.RunID)
	require.NoError(t, err)
	want := testSpots()
	assert.Equal(t, []Spot{want[1], want[3]}, spots)

	_, err = store.SaveRun(ctx, testRun(), testSpots(), []bool{true})
	assert.Error(t, err)
}

func TestSpotStore_PruneDuplicatesLockstep(t *testing.T) {
	store, sqlDB := setupSpotStore(t)
	ctx := context.Background()

	saved, err := store.SaveRun(ctx, testRun(), testSpots(), nil)
	require.NoError(t, err)

	removed, err := store.PruneDuplicates(ctx, saved.RunID, []bool{true, false, false, true})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.Equal(t, 2, countRows(t, sqlDB, "omp_spot_info", saved.RunID))
	assert.Equal(t, 4, countRows(t, sqlDB, "omp_spot_coefs", saved.RunID))

	spots, err := store.LoadSpots(ctx, saved.RunID)
	require.NoError(t, err)
	want := testSpots()
	assert.Equal(t, []Spot{want[0], want[3]}, spots)

	run, err := store.GetRun(ctx, saved.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.NSpots)

	_, err = store.PruneDuplicates(ctx, saved.RunID, []bool{true})
	assert.Error(t, err, "mask length must match stored spots")
	_, err = store.PruneDuplicates(ctx, "missing", nil)
	assert.ErrorContains(t, err, "not found")
}

func TestSpotStore_ListDeleteAndCounts(t *testing.T) {
	store, sqlDB := setupSpotStore(t)
	ctx := context.Background()

	first := testRun()
	first.CreatedAt = 100
	a, err := store.SaveRun(ctx, first, testSpots(), nil)
	require.NoError(t, err)
	second := testRun()
	second.CreatedAt = 200
	b, err := store.SaveRun(ctx, second, testSpots()[:1], nil)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.RunID, runs[0].RunID)
	assert.Equal(t, a.RunID, runs[1].RunID)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := store.GeneCounts(ctx, a.RunID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 1: 1, 2: 1}, counts)

	require.NoError(t, store.DeleteRun(ctx, a.RunID))
	assert.Zero(t, countRows(t, sqlDB, "omp_spot_info", a.RunID))
	assert.Zero(t, countRows(t, sqlDB, "omp_spot_coefs", a.RunID))
	_, err = store.GetRun(ctx, a.RunID)
	assert.ErrorContains(t, err, "not found")
	assert.ErrorContains(t, store.DeleteRun(ctx, a.RunID), "not found")
}

func TestSpotStore_RejectsColumnOutsideWidth(t *testing.T) {
	store, _ := setupSpotStore(t)
	spots := testSpots()
	spots[0].Coefs = l2codes.SparseRow{Indices: []int{5}, Values: []float64{1}}
	_, err := store.SaveRun(context.Background(), testRun(), spots, nil)
	assert.ErrorContains(t, err, "outside width")
}
