package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// GradeEventRepository persists grade lifecycle events for later retrieval.
type GradeEventRepository interface {
	Create(ctx context.Context, event *models.GradeEvent) error
	ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]models.GradeEvent, error)
	MarkRead(ctx context.Context, id, studentID uint) (models.GradeEvent, error)
}

type gradeEventRepository struct {
	db *gorm.DB
}

// NewGradeEventRepository constructs the grade event repository.
func NewGradeEventRepository(db *gorm.DB) GradeEventRepository {
	return &gradeEventRepository{db: db}
}

func (r *gradeEventRepository) Create(ctx context.Context, event *models.GradeEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gradeEventRepository) ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]models.GradeEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.GradeEvent
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *gradeEventRepository) MarkRead(ctx context.Context, id, studentID uint) (models.GradeEvent, error) {
	var event models.GradeEvent
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("student_id = ?", studentID).
		First(&event).Error; err != nil {
		return models.GradeEvent{}, err
	}

	if event.ReadAt == nil {
		now := time.Now().UTC()
		event.ReadAt = &now
		if err := r.db.WithContext(ctx).Save(&event).Error; err != nil {
			return models.GradeEvent{}, err
		}
	}

	return event, nil
}
