package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// ReferenceRepository resolves the external entities grade records point at.
// The grading core only ever needs existence checks and display fields.
type ReferenceRepository interface {
	StudentExists(ctx context.Context, id uint) (bool, error)
	CourseExists(ctx context.Context, id uint) (bool, error)
	DepartmentExists(ctx context.Context, id uint) (bool, error)
	InstructorExists(ctx context.Context, id uint) (bool, error)
	GetStudent(ctx context.Context, id uint) (models.Student, error)
	CoursesByIDs(ctx context.Context, ids []uint) (map[uint]models.Course, error)
	StudentNamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error)
}

type referenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository instantiates the repository.
func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) exists(ctx context.Context, model interface{}, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *referenceRepository) StudentExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Student{}, id)
}

func (r *referenceRepository) CourseExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Course{}, id)
}

func (r *referenceRepository) DepartmentExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Department{}, id)
}

func (r *referenceRepository) InstructorExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Instructor{}, id)
}

func (r *referenceRepository) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *referenceRepository) CoursesByIDs(ctx context.Context, ids []uint) (map[uint]models.Course, error) {
	result := make(map[uint]models.Course, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var courses []models.Course
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, course := range courses {
		result[course.ID] = course
	}
	return result, nil
}

func (r *referenceRepository) StudentNamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error) {
	result := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var students []models.Student
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	for _, student := range students {
		result[student.ID] = student.Name
	}
	return result, nil
}
