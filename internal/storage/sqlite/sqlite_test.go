package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	run := &models.Run{
		ProfileName: "home",
		Server:      "203.0.113.7",
		BackendType: "libev",
		BackendPath: "/usr/bin/ss-local",
		PID:         4242,
	}
	require.NoError(t, db.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Running())
	assert.Equal(t, 4242, got.PID)

	code := 0
	run.ExitCode = &code
	run.Requested = true
	require.NoError(t, db.FinishRun(ctx, run))

	got, err = db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, got.Running())
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	assert.True(t, got.Requested)
}

func TestFinishUnknownRun(t *testing.T) {
	db := newTestDB(t)
	err := db.FinishRun(context.Background(), &models.Run{ID: "missing"})
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "a"} {
		require.NoError(t, db.CreateRun(ctx, &models.Run{
			ProfileName: name,
			Server:      "s",
			BackendType: "libev",
			BackendPath: "/bin/ss-local",
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := db.ListRuns(ctx, storage.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	runs, err = db.ListRuns(ctx, storage.RunFilter{ProfileName: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ProfileName)
}

func TestCloseDanglingRuns(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	open := &models.Run{ProfileName: "a", Server: "s", BackendType: "go", BackendPath: "/x"}
	require.NoError(t, db.CreateRun(ctx, open))

	n, err := db.CloseDanglingRuns(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := db.GetRun(ctx, open.ID)
	require.NoError(t, err)
	assert.False(t, got.Running())
	assert.NotEmpty(t, got.Error)
}

func TestLatencyHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	latest, err := db.GetLatestLatency(ctx, "home")
	require.NoError(t, err)
	assert.Nil(t, latest)

	ms := 42
	require.NoError(t, db.RecordLatency(ctx, &models.LatencyTest{
		ProfileName:  "home",
		Server:       "203.0.113.7",
		LatencyMS:    &ms,
		Success:      true,
		TestStrategy: "tcp",
		TestedAt:     time.Now().Add(-time.Minute),
	}))
	require.NoError(t, db.RecordLatency(ctx, &models.LatencyTest{
		ProfileName:  "home",
		Server:       "203.0.113.7",
		Success:      false,
		ErrorMessage: "timeout",
		TestStrategy: "tcp",
	}))

	latest, err = db.GetLatestLatency(ctx, "home")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Success)
	assert.Nil(t, latest.LatencyMS)
	assert.Equal(t, "timeout", latest.ErrorMessage)

	history, err := db.GetLatencyHistory(ctx, "home", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].LatencyMS)
	assert.Equal(t, 42, *history[1].LatencyMS)

	n, err := db.PruneLatency(ctx, time.Now().Add(-30*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
