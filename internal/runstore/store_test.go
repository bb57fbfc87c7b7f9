package runstore

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpoint-eng/siteplan/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	rec := Record{
		RunID:       "run-1",
		Status:      "completed",
		Stage:       "earthwork",
		ProgressPct: 100,
		Summary: &Summary{
			PlacedCount: 8, RequestedCount: 10, SuccessRatePct: 80,
			RoadLengthM: 1250, RoadCompliant: true,
			TotalCutM3: 420, TotalFillM3: 390,
		},
		CreatedAt: time.Now().Add(-time.Minute),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.SaveRun(rec))

	got, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 100.0, got.ProgressPct)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 8, got.Summary.PlacedCount)
	assert.True(t, got.Summary.RoadCompliant)
}

func TestSaveRunUpserts(t *testing.T) {
	db := openTestDB(t)
	rec := Record{RunID: "run-1", Status: "running", ProgressPct: 35,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, db.SaveRun(rec))

	rec.Status = "failed"
	rec.Error = "terrain analysis: no coverage"
	require.NoError(t, db.SaveRun(rec))

	got, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.NotEmpty(t, got.Error)

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "upsert must not create a second row")
}

func TestGetRunUnknown(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rec := Record{
			RunID: id, Status: "completed", ProgressPct: 100,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: time.Now(),
		}
		require.NoError(t, db.SaveRun(rec))
	}

	runs, err := db.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
}

func TestFromJob(t *testing.T) {
	v := pipeline.JobView{
		ID:          "job-1",
		Status:      pipeline.StatusCompleted,
		Stage:       pipeline.StageEarthwork,
		ProgressPct: 100,
		CreatedAt:   time.Now(),
	}
	rec := FromJob(v)
	assert.Equal(t, "job-1", rec.RunID)
	assert.Equal(t, "completed", rec.Status)
	assert.Nil(t, rec.Summary, "no result, summary must be nil")
}

func TestBackup(t *testing.T) {
	db := openTestDB(t)
	rec := Record{RunID: "run-1", Status: "completed", ProgressPct: 100,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, db.SaveRun(rec))

	path := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, db.Backup(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	restored, err := NewDB(path)
	require.NoError(t, err)
	defer restored.Close()
	_, err = restored.GetRun("run-1")
	assert.NoError(t, err, "backup must carry the saved run")
}
