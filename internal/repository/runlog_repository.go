package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/dicom-catalog-indexer/internal/database"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
)

// RunLogRepository persists a history of indexing batches.
type RunLogRepository struct{}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository() *RunLogRepository {
	return &RunLogRepository{}
}

// Create creates a new indexing run log entry
func (r *RunLogRepository) Create(ctx context.Context, l *models.IndexingRunLog) error {
	if err := database.DB.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	return nil
}

// List retrieves the most recent indexing run logs, newest first.
func (r *RunLogRepository) List(ctx context.Context, limit int) ([]models.IndexingRunLog, error) {
	var logs []models.IndexingRunLog
	query := database.DB.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}
