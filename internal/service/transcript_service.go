package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

// ErrStudentNotFound indicates the student reference does not resolve.
var ErrStudentNotFound = errors.New("student not found")

// TranscriptService aggregates one student's grade records into GPA figures
// and a structured transcript.
type TranscriptService interface {
	CalculateGPA(ctx context.Context, studentID uint, filters dto.GPAFilters) (dto.GPAResponse, error)
	GenerateTranscript(ctx context.Context, studentID uint, filters dto.GPAFilters, includeAssessments bool) (dto.TranscriptResponse, error)
}

type transcriptService struct {
	records  repository.GradeRecordRepository
	refs     repository.ReferenceRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewTranscriptService constructs the transcript aggregator.
func NewTranscriptService(records repository.GradeRecordRepository, refs repository.ReferenceRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) TranscriptService {
	return &transcriptService{
		records:  records,
		refs:     refs,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "transcript_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/uni-records-api/internal/service/transcript"),
		now:      time.Now,
	}
}

// gpaAccumulator sums credit hours and quality points, skipping rows that
// cannot contribute (zero credits, zero max score).
type gpaAccumulator struct {
	credits       float64
	qualityPoints float64
	courses       int
}

func (a *gpaAccumulator) add(record models.GradeRecord) {
	if record.CreditHours <= 0 || record.MaxTotalScore <= 0 {
		return
	}
	a.credits += record.CreditHours
	a.qualityPoints += record.QualityPoints
	a.courses++
}

func (a gpaAccumulator) gpa() float64 {
	if a.credits <= 0 {
		return 0
	}
	return roundTo2(a.qualityPoints / a.credits)
}

func roundTo2(value float64) float64 {
	return math.Round(value*100) / 100
}

func (s *transcriptService) CalculateGPA(ctx context.Context, studentID uint, filters dto.GPAFilters) (dto.GPAResponse, error) {
	cacheKey := fmt.Sprintf("gpa:%d:%s:%s:%s:%t:%t", studentID, filters.AcademicYear, filters.Term, filters.Program, filters.IncludeUnpublished, filters.ExcludeIncomplete)
	ctx, span := s.tracer.Start(ctx, "transcript.calculate_gpa", trace.WithAttributes(
		attribute.Int64("transcript.student_id", int64(studentID)),
	))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.GPAResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("transcript.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read gpa cache")
			span.RecordError(err)
		}
	}

	records, err := s.selectRecords(ctx, studentID, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_selection_failed")
		return dto.GPAResponse{}, err
	}

	var acc gpaAccumulator
	for _, record := range records {
		acc.add(record)
	}

	response := dto.GPAResponse{
		StudentID:          studentID,
		GPA:                acc.gpa(),
		TotalCredits:       acc.credits,
		TotalQualityPoints: acc.qualityPoints,
		CourseCount:        acc.courses,
		GeneratedAt:        s.now().UTC(),
	}

	s.storeCache(ctx, cacheKey, response)
	span.SetAttributes(attribute.Float64("transcript.gpa", response.GPA))
	return response, nil
}

func (s *transcriptService) GenerateTranscript(ctx context.Context, studentID uint, filters dto.GPAFilters, includeAssessments bool) (dto.TranscriptResponse, error) {
	cacheKey := fmt.Sprintf("transcript:%d:%s:%s:%s:%t:%t:%t", studentID, filters.AcademicYear, filters.Term, filters.Program, filters.IncludeUnpublished, filters.ExcludeIncomplete, includeAssessments)
	ctx, span := s.tracer.Start(ctx, "transcript.generate", trace.WithAttributes(
		attribute.Int64("transcript.student_id", int64(studentID)),
		attribute.Bool("transcript.include_assessments", includeAssessments),
	))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.TranscriptResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("transcript.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read transcript cache")
			span.RecordError(err)
		}
	}

	student, err := s.refs.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.TranscriptResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.TranscriptResponse{}, err
	}

	records, err := s.selectRecords(ctx, studentID, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_selection_failed")
		return dto.TranscriptResponse{}, err
	}

	courseIDs := make([]uint, 0, len(records))
	for _, record := range records {
		courseIDs = append(courseIDs, record.CourseID)
	}
	courses, err := s.refs.CoursesByIDs(ctx, courseIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_hydration_failed")
		return dto.TranscriptResponse{}, err
	}

	response := s.buildTranscript(student, records, courses, includeAssessments)
	s.storeCache(ctx, cacheKey, response)
	span.SetAttributes(attribute.Int("transcript.term_count", len(response.Terms)))
	return response, nil
}

type termKey struct {
	academicYear string
	semester     int
}

func (s *transcriptService) buildTranscript(student models.Student, records []models.GradeRecord, courses map[uint]models.Course, includeAssessments bool) dto.TranscriptResponse {
	grouped := make(map[termKey][]models.GradeRecord)
	for _, record := range records {
		key := termKey{academicYear: record.AcademicYear, semester: record.Semester}
		grouped[key] = append(grouped[key], record)
	}

	keys := make([]termKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].academicYear != keys[j].academicYear {
			return keys[i].academicYear < keys[j].academicYear
		}
		return keys[i].semester < keys[j].semester
	})

	var overall gpaAccumulator
	terms := make([]dto.TranscriptTerm, 0, len(keys))
	for _, key := range keys {
		var termAcc gpaAccumulator
		rows := make([]dto.TranscriptCourse, 0, len(grouped[key]))

		for _, record := range grouped[key] {
			termAcc.add(record)
			overall.add(record)

			row := dto.TranscriptCourse{
				CourseID:     record.CourseID,
				CreditHours:  record.CreditHours,
				FinalGrade:   record.FinalGrade,
				GradePoint:   record.GradePoint,
				ResultStatus: string(record.ResultStatus),
			}
			if course, ok := courses[record.CourseID]; ok {
				row.CourseCode = course.Code
				row.CourseName = course.Name
			}
			if includeAssessments {
				for _, a := range record.Assessments {
					row.Assessments = append(row.Assessments, dto.NewAssessmentResponse(a))
				}
			}
			rows = append(rows, row)
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].CourseCode < rows[j].CourseCode })

		terms = append(terms, dto.TranscriptTerm{
			AcademicYear:  key.academicYear,
			Semester:      key.semester,
			GPA:           termAcc.gpa(),
			Credits:       termAcc.credits,
			QualityPoints: termAcc.qualityPoints,
			Courses:       rows,
		})
	}

	return dto.TranscriptResponse{
		StudentID:     student.ID,
		StudentName:   student.Name,
		Program:       student.Program,
		Terms:         terms,
		CumulativeGPA: overall.gpa(),
		TotalCredits:  overall.credits,
		GeneratedAt:   s.now().UTC(),
	}
}

// selectRecords picks the student's active records; only published ones count
// unless the filters say otherwise, and incomplete outcomes can be excluded.
func (s *transcriptService) selectRecords(ctx context.Context, studentID uint, filters dto.GPAFilters) ([]models.GradeRecord, error) {
	filter := repository.GradeRecordFilter{
		StudentID:    &studentID,
		AcademicYear: filters.AcademicYear,
		Term:         filters.Term,
		Program:      filters.Program,
		ActiveOnly:   true,
	}
	if !filters.IncludeUnpublished {
		published := true
		filter.Published = &published
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if !filters.ExcludeIncomplete {
		return records, nil
	}

	selected := records[:0]
	for _, record := range records {
		if record.ResultStatus == models.ResultIncomplete {
			continue
		}
		selected = append(selected, record)
	}
	return selected, nil
}

func (s *transcriptService) storeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to store aggregation cache")
	}
}
