package service

import (
	"context"
	"errors"
	"time"

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

// ErrProgramNotFound indicates no requirements exist for the program.
var ErrProgramNotFound = errors.New("program requirements not found")

// GraduationService compares a student's accumulated results against their
// program's graduation minimums.
type GraduationService interface {
	GetGraduationStatus(ctx context.Context, studentID uint) (dto.GraduationStatusResponse, error)
}

type graduationService struct {
	transcripts TranscriptService
	records     repository.GradeRecordRepository
	refs        repository.ReferenceRepository
	programs    repository.ProgramRequirementRepository
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGraduationService constructs the graduation requirements evaluator.
func NewGraduationService(transcripts TranscriptService, records repository.GradeRecordRepository, refs repository.ReferenceRepository, programs repository.ProgramRequirementRepository, logger zerolog.Logger) GraduationService {
	return &graduationService{
		transcripts: transcripts,
		records:     records,
		refs:        refs,
		programs:    programs,
		logger:      logger.With().Str("component", "graduation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/uni-records-api/internal/service/graduation"),
		now:         time.Now,
	}
}

func (s *graduationService) GetGraduationStatus(ctx context.Context, studentID uint) (dto.GraduationStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "graduation.status", trace.WithAttributes(
		attribute.Int64("graduation.student_id", int64(studentID)),
	))
	defer span.End()

	student, err := s.refs.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.GraduationStatusResponse{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.GraduationStatusResponse{}, err
	}

	requirement, err := s.programs.GetByProgram(ctx, student.Program)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "program_not_found")
			return dto.GraduationStatusResponse{}, ErrProgramNotFound
		}
		span.RecordError(err)
		return dto.GraduationStatusResponse{}, err
	}

	gpa, err := s.transcripts.CalculateGPA(ctx, studentID, dto.GPAFilters{ExcludeIncomplete: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gpa_calculation_failed")
		return dto.GraduationStatusResponse{}, err
	}

	passedCredits, err := s.passedCredits(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credit_accumulation_failed")
		return dto.GraduationStatusResponse{}, err
	}

	requirements := []dto.RequirementStatus{
		{
			Name:      "credit_hours",
			Required:  requirement.MinCredits,
			Actual:    passedCredits,
			Satisfied: passedCredits >= requirement.MinCredits,
		},
		{
			Name:      "overall_gpa",
			Required:  requirement.MinGPA,
			Actual:    gpa.GPA,
			Satisfied: gpa.GPA >= requirement.MinGPA,
		},
	}

	eligible := true
	for _, r := range requirements {
		if !r.Satisfied {
			eligible = false
			break
		}
	}

	span.SetAttributes(attribute.Bool("graduation.eligible", eligible))
	return dto.GraduationStatusResponse{
		StudentID:    studentID,
		Program:      student.Program,
		Requirements: requirements,
		Eligible:     eligible,
		GeneratedAt:  s.now().UTC(),
	}, nil
}

// passedCredits sums credit hours of published, passed records only: failed
// and incomplete courses earn nothing toward graduation.
func (s *graduationService) passedCredits(ctx context.Context, studentID uint) (float64, error) {
	published := true
	records, err := s.records.List(ctx, repository.GradeRecordFilter{
		StudentID:  &studentID,
		Published:  &published,
		ActiveOnly: true,
	})
	if err != nil {
		return 0, err
	}

	var credits float64
	for _, record := range records {
		if record.ResultStatus == models.ResultPass {
			credits += record.CreditHours
		}
	}
	return credits, nil
}
