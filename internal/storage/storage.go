package storage

import (
	"context"
	"time"

	"shadowdeck/internal/storage/models"
)

// History persists backend runs and latency probe results.
type History interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, error)
	// CloseDanglingRuns marks runs left open by an unclean exit as stopped.
	CloseDanglingRuns(ctx context.Context, at time.Time) (int64, error)

	// Latency operations
	RecordLatency(ctx context.Context, latency *models.LatencyTest) error
	GetLatestLatency(ctx context.Context, profileName string) (*models.LatencyTest, error)
	GetLatencyHistory(ctx context.Context, profileName string, limit int) ([]*models.LatencyTest, error)
	PruneLatency(ctx context.Context, before time.Time) (int64, error)

	// Close closes the storage connection
	Close() error
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	ProfileName string
	Limit       int
}
