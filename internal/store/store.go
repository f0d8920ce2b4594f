package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gel-controller/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	RecordBaseline(ctx context.Context, rec *model.Baseline) error
	LatestBaselines(ctx context.Context) ([]model.Baseline, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying gorm handle for callers that need direct access.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordBaseline appends one baseline capture record.
func (s *gormStore) RecordBaseline(ctx context.Context, rec *model.Baseline) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record baseline for camera %s: %w", rec.CameraName, err)
	}
	return nil
}

// latestBaselineQuery picks the newest baseline row per camera. The join
// resolves ties on captured_at to the same row on both sides.
const latestBaselineQuery = `
SELECT b.id, b.camera_name, b.captured_at, b.location
FROM baselines b
INNER JOIN (
    SELECT camera_name, MAX(captured_at) AS max_captured_at
    FROM baselines
    GROUP BY camera_name
) latest
ON latest.camera_name = b.camera_name
AND latest.max_captured_at = b.captured_at
ORDER BY b.camera_name`

// LatestBaselines returns the most recent baseline per camera.
func (s *gormStore) LatestBaselines(ctx context.Context) ([]model.Baseline, error) {
	var rows []model.Baseline
	if err := s.db.WithContext(ctx).Raw(latestBaselineQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query latest baselines: %w", err)
	}
	return rows, nil
}
