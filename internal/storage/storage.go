// Package storage persists templates, rendered outputs and the run journal.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docfill/internal/models"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Journal records delivered pipeline runs.
type Journal interface {
	RecordRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, offset, limit int) ([]*models.RunRecord, error)
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
