package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// ErrStaleVersion indicates a compare-and-swap update lost against a
// concurrent writer: the caller's version no longer matches the stored row.
var ErrStaleVersion = errors.New("stale record version")

// GradeRecordFilter narrows grade record queries.
type GradeRecordFilter struct {
	StudentID    *uint
	CourseID     *uint
	DepartmentID *uint
	InstructorID *uint
	Section      string
	Term         string
	AcademicYear string
	Program      string
	Year         *int
	Semester     *int
	Published    *bool
	ActiveOnly   bool
}

// GradeRecordRepository defines data operations for grade records.
type GradeRecordRepository interface {
	List(ctx context.Context, filter GradeRecordFilter) ([]models.GradeRecord, error)
	GetByID(ctx context.Context, id uint) (models.GradeRecord, error)
	FindByIdentity(ctx context.Context, studentID, courseID uint, term, academicYear string) (models.GradeRecord, error)
	Create(ctx context.Context, record *models.GradeRecord) error
	Update(ctx context.Context, record *models.GradeRecord, expectedVersion int) error
}

type gradeRecordRepository struct {
	db *gorm.DB
}

// NewGradeRecordRepository instantiates the repository.
func NewGradeRecordRepository(db *gorm.DB) GradeRecordRepository {
	return &gradeRecordRepository{db: db}
}

func (r *gradeRecordRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.GradeRecord{}).Preload("Assessments")
}

func (r *gradeRecordRepository) List(ctx context.Context, filter GradeRecordFilter) ([]models.GradeRecord, error) {
	query := r.baseQuery(ctx)

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filter.InstructorID)
	}
	if filter.Section != "" {
		query = query.Where("section = ?", filter.Section)
	}
	if filter.Term != "" {
		query = query.Where("term = ?", filter.Term)
	}
	if filter.AcademicYear != "" {
		query = query.Where("academic_year = ?", filter.AcademicYear)
	}
	if filter.Program != "" {
		query = query.Where("program = ?", filter.Program)
	}
	if filter.Year != nil {
		query = query.Where("year = ?", *filter.Year)
	}
	if filter.Semester != nil {
		query = query.Where("semester = ?", *filter.Semester)
	}
	if filter.Published != nil {
		query = query.Where("is_published = ?", *filter.Published)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var records []models.GradeRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *gradeRecordRepository) GetByID(ctx context.Context, id uint) (models.GradeRecord, error) {
	var record models.GradeRecord
	if err := r.baseQuery(ctx).First(&record, id).Error; err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (r *gradeRecordRepository) FindByIdentity(ctx context.Context, studentID, courseID uint, term, academicYear string) (models.GradeRecord, error) {
	var record models.GradeRecord
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		Where("term = ?", term).
		Where("academic_year = ?", academicYear).
		First(&record).Error; err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (r *gradeRecordRepository) Create(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update applies the record and its assessment list atomically, guarded by an
// optimistic check on the version counter. The stored row must still carry
// expectedVersion; the write bumps it by one. Assessments are replaced
// wholesale inside the same transaction so observers never see derived
// fields from one assessment set and scores from another.
func (r *gradeRecordRepository) Update(ctx context.Context, record *models.GradeRecord, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record.Version = expectedVersion + 1

		result := tx.Model(&models.GradeRecord{}).
			Where("id = ?", record.ID).
			Where("version = ?", expectedVersion).
			Select("*").
			Omit("id", "created_at", "Assessments").
			Updates(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleVersion
		}

		if err := tx.Where("grade_record_id = ?", record.ID).Delete(&models.Assessment{}).Error; err != nil {
			return err
		}
		for i := range record.Assessments {
			record.Assessments[i].ID = 0
			record.Assessments[i].GradeRecordID = record.ID
		}
		if len(record.Assessments) > 0 {
			if err := tx.Create(&record.Assessments).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
