package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

func TestGradeRecordRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRecordRepository(db)

	fall := models.GradeRecord{StudentID: 1, CourseID: 10, DepartmentID: 100, InstructorID: 200, Term: "Fall", AcademicYear: "2025-2026", Section: "A", Year: 2, Semester: 3, CreditHours: 3, GPAScale: 4, IsPublished: true, IsActive: true, Version: 1}
	spring := models.GradeRecord{StudentID: 1, CourseID: 11, DepartmentID: 100, InstructorID: 200, Term: "Spring", AcademicYear: "2025-2026", Section: "B", Year: 2, Semester: 4, CreditHours: 3, GPAScale: 4, IsActive: true, Version: 1}
	inactive := models.GradeRecord{StudentID: 2, CourseID: 10, DepartmentID: 101, InstructorID: 201, Term: "Fall", AcademicYear: "2025-2026", Section: "A", Year: 1, Semester: 1, CreditHours: 3, GPAScale: 4, IsActive: false, Version: 1}
	require.NoError(t, db.Create(&fall).Error)
	require.NoError(t, db.Create(&spring).Error)
	require.NoError(t, db.Create(&inactive).Error)

	studentID := uint(1)
	records, err := repo.List(context.Background(), GradeRecordFilter{StudentID: &studentID})
	require.NoError(t, err)
	require.Len(t, records, 2)

	published := true
	records, err = repo.List(context.Background(), GradeRecordFilter{Term: "Fall", Published: &published})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, fall.ID, records[0].ID)

	records, err = repo.List(context.Background(), GradeRecordFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 2)

	departmentID := uint(101)
	records, err = repo.List(context.Background(), GradeRecordFilter{DepartmentID: &departmentID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint(2), records[0].StudentID)
}

func TestGradeRecordRepositoryFindByIdentity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRecordRepository(db)

	record := models.GradeRecord{StudentID: 7, CourseID: 20, DepartmentID: 100, InstructorID: 200, Term: "Fall", AcademicYear: "2025-2026", Year: 1, Semester: 1, CreditHours: 4, GPAScale: 4, IsActive: true, Version: 1}
	require.NoError(t, db.Create(&record).Error)

	found, err := repo.FindByIdentity(context.Background(), 7, 20, "Fall", "2025-2026")
	require.NoError(t, err)
	require.Equal(t, record.ID, found.ID)

	_, err = repo.FindByIdentity(context.Background(), 7, 20, "Spring", "2025-2026")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGradeRecordRepositoryUpdateVersionGuard(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRecordRepository(db)

	record := models.GradeRecord{
		StudentID: 1, CourseID: 10, DepartmentID: 100, InstructorID: 200,
		Term: "Fall", AcademicYear: "2025-2026", Year: 2, Semester: 3,
		CreditHours: 3, GPAScale: 4, IsActive: true, Version: 1,
		Assessments: []models.Assessment{
			{Title: "Midterm", Type: models.AssessmentMidterm, Score: 40, MaxScore: 50, Weight: 40, Status: models.AssessmentStatusGraded},
		},
	}
	require.NoError(t, repo.Create(context.Background(), &record))

	record.Assessments = []models.Assessment{
		{Title: "Midterm", Type: models.AssessmentMidterm, Score: 45, MaxScore: 50, Weight: 40, Status: models.AssessmentStatusGraded},
		{Title: "Final", Type: models.AssessmentFinal, Score: 18, MaxScore: 20, Weight: 60, Status: models.AssessmentStatusGraded},
	}
	require.NoError(t, repo.Update(context.Background(), &record, 1))
	require.Equal(t, 2, record.Version)

	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version)
	require.Len(t, stored.Assessments, 2)

	stale := stored
	stale.Assessments = nil
	err = repo.Update(context.Background(), &stale, 1)
	require.ErrorIs(t, err, ErrStaleVersion)

	stored, err = repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Version, "losing write must not change the row")
	require.Len(t, stored.Assessments, 2)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GradeRecord{}, &models.Assessment{}))
	return db
}
