package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeGradeRecordRepo struct {
	records     map[uint]models.GradeRecord
	nextID      uint
	createCalls int
	updateCalls int
	failCreate  error
}

func newFakeGradeRecordRepo() *fakeGradeRecordRepo {
	return &fakeGradeRecordRepo{records: make(map[uint]models.GradeRecord)}
}

func (f *fakeGradeRecordRepo) List(ctx context.Context, filter repository.GradeRecordFilter) ([]models.GradeRecord, error) {
	var results []models.GradeRecord
	for _, record := range f.records {
		if filter.StudentID != nil && record.StudentID != *filter.StudentID {
			continue
		}
		if filter.CourseID != nil && record.CourseID != *filter.CourseID {
			continue
		}
		if filter.DepartmentID != nil && record.DepartmentID != *filter.DepartmentID {
			continue
		}
		if filter.InstructorID != nil && record.InstructorID != *filter.InstructorID {
			continue
		}
		if filter.Section != "" && record.Section != filter.Section {
			continue
		}
		if filter.Term != "" && record.Term != filter.Term {
			continue
		}
		if filter.AcademicYear != "" && record.AcademicYear != filter.AcademicYear {
			continue
		}
		if filter.Program != "" && record.Program != filter.Program {
			continue
		}
		if filter.Year != nil && record.Year != *filter.Year {
			continue
		}
		if filter.Semester != nil && record.Semester != *filter.Semester {
			continue
		}
		if filter.Published != nil && record.IsPublished != *filter.Published {
			continue
		}
		if filter.ActiveOnly && !record.IsActive {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

func (f *fakeGradeRecordRepo) GetByID(ctx context.Context, id uint) (models.GradeRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return models.GradeRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeGradeRecordRepo) FindByIdentity(ctx context.Context, studentID, courseID uint, term, academicYear string) (models.GradeRecord, error) {
	for _, record := range f.records {
		if record.StudentID == studentID && record.CourseID == courseID && record.Term == term && record.AcademicYear == academicYear {
			return record, nil
		}
	}
	return models.GradeRecord{}, gorm.ErrRecordNotFound
}

func (f *fakeGradeRecordRepo) Create(ctx context.Context, record *models.GradeRecord) error {
	f.createCalls++
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	record.ID = f.nextID
	f.records[record.ID] = *record
	return nil
}

func (f *fakeGradeRecordRepo) Update(ctx context.Context, record *models.GradeRecord, expectedVersion int) error {
	f.updateCalls++
	stored, ok := f.records[record.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrStaleVersion
	}
	record.Version = expectedVersion + 1
	f.records[record.ID] = *record
	return nil
}

type fakeReferenceRepo struct {
	students    map[uint]models.Student
	courses     map[uint]models.Course
	departments map[uint]struct{}
	instructors map[uint]struct{}
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{
		students:    make(map[uint]models.Student),
		courses:     make(map[uint]models.Course),
		departments: make(map[uint]struct{}),
		instructors: make(map[uint]struct{}),
	}
}

func (f *fakeReferenceRepo) StudentExists(ctx context.Context, id uint) (bool, error) {
	_, ok := f.students[id]
	return ok, nil
}

func (f *fakeReferenceRepo) CourseExists(ctx context.Context, id uint) (bool, error) {
	_, ok := f.courses[id]
	return ok, nil
}

func (f *fakeReferenceRepo) DepartmentExists(ctx context.Context, id uint) (bool, error) {
	_, ok := f.departments[id]
	return ok, nil
}

func (f *fakeReferenceRepo) InstructorExists(ctx context.Context, id uint) (bool, error) {
	_, ok := f.instructors[id]
	return ok, nil
}

func (f *fakeReferenceRepo) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return student, nil
}

func (f *fakeReferenceRepo) CoursesByIDs(ctx context.Context, ids []uint) (map[uint]models.Course, error) {
	result := make(map[uint]models.Course, len(ids))
	for _, id := range ids {
		if course, ok := f.courses[id]; ok {
			result[id] = course
		}
	}
	return result, nil
}

func (f *fakeReferenceRepo) StudentNamesByIDs(ctx context.Context, ids []uint) (map[uint]string, error) {
	result := make(map[uint]string, len(ids))
	for _, id := range ids {
		if student, ok := f.students[id]; ok {
			result[id] = student.Name
		}
	}
	return result, nil
}

type fakeBroadcaster struct {
	events []models.GradeEvent
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, event models.GradeEvent) {
	f.events = append(f.events, event)
}

var errFakeStorage = errors.New("storage unavailable")
