package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rubriq/rubriq-api/internal/models"
)

// GradingHistoryRepository persists completed grading runs.
type GradingHistoryRepository interface {
	Create(ctx context.Context, entry *models.GradingHistory) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.GradingHistory, error)
	MarkPosted(ctx context.Context, userID uint, jobID string, postedCount int) error
	CountJobs(ctx context.Context) (int64, error)
}

type gradingHistoryRepository struct {
	db *gorm.DB
}

// NewGradingHistoryRepository constructs a grading history repository.
func NewGradingHistoryRepository(db *gorm.DB) GradingHistoryRepository {
	return &gradingHistoryRepository{db: db}
}

func (r *gradingHistoryRepository) Create(ctx context.Context, entry *models.GradingHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gradingHistoryRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.GradingHistory, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.GradingHistory
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *gradingHistoryRepository) MarkPosted(ctx context.Context, userID uint, jobID string, postedCount int) error {
	tx := r.db.WithContext(ctx).Model(&models.GradingHistory{}).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Update("posted_count", postedCount)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *gradingHistoryRepository) CountJobs(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.GradingHistory{}).Count(&total).Error
	return total, err
}
