package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/grading"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/observability"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

// ErrRecordNotFound indicates the grade record was not located.
var ErrRecordNotFound = errors.New("grade record not found")

// ErrDuplicateRecord indicates a record already exists for the same student,
// course, term and academic year.
var ErrDuplicateRecord = errors.New("grade record already exists for student, course, term and academic year")

// ErrReferenceNotFound indicates a referenced entity does not resolve.
var ErrReferenceNotFound = errors.New("referenced entity not found")

// ErrRecordLocked indicates a mutation was blocked by the lock flag.
var ErrRecordLocked = errors.New("grade record is locked")

// ErrRecordPublished indicates a mutation was blocked by the published flag.
var ErrRecordPublished = errors.New("grade record is published")

// ErrVersionConflict indicates the caller supplied a stale version.
var ErrVersionConflict = errors.New("grade record version conflict")

// ErrIncompleteRecord indicates publishing was attempted before the record
// produced a final grade.
var ErrIncompleteRecord = errors.New("grade record has no computed final grade")

// ErrStateConflict indicates an invalid lifecycle transition.
var ErrStateConflict = errors.New("invalid lifecycle state transition")

// ErrAppealNotAllowed indicates the record is not eligible for appeal.
var ErrAppealNotAllowed = errors.New("grade record is not eligible for appeal")

// ErrScoreExceedsMax indicates an assessment score surpasses its max score
// without being marked extra credit.
var ErrScoreExceedsMax = errors.New("assessment score exceeds max score")

// GradeEventBroadcaster fans grade lifecycle events out to subscribed
// clients. Implementations must tolerate being nil-checked by callers.
type GradeEventBroadcaster interface {
	Broadcast(ctx context.Context, event models.GradeEvent)
}

// GradeRecordService owns the derivation pipeline and the lifecycle state
// machine for grade records.
type GradeRecordService interface {
	Create(ctx context.Context, payload dto.GradeRecordCreateRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	BulkCreate(ctx context.Context, payload dto.BulkGradeRecordCreateRequest, actor AuditActor) (dto.BulkGradeRecordResponse, error)
	BulkUpdate(ctx context.Context, payload dto.BulkGradeRecordUpdateRequest, actor AuditActor) (dto.BulkGradeRecordResponse, error)
	Get(ctx context.Context, id uint) (dto.GradeRecordResponse, error)
	List(ctx context.Context, filter repository.GradeRecordFilter) ([]dto.GradeRecordResponse, error)
	Update(ctx context.Context, id uint, payload dto.GradeRecordUpdateRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	Delete(ctx context.Context, id uint, actor AuditActor) error
	Lock(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error)
	Unlock(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error)
	Publish(ctx context.Context, id uint, publish bool, actor AuditActor) (dto.GradeRecordResponse, error)
	Verify(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error)
	SubmitModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	ApproveModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	RejectModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	SubmitAppeal(ctx context.Context, id uint, payload dto.AppealSubmitRequest, actor AuditActor) (dto.GradeRecordResponse, error)
	ReviewAppeal(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error)
	DecideAppeal(ctx context.Context, id uint, payload dto.AppealDecideRequest, actor AuditActor) (dto.GradeRecordResponse, error)
}

type gradeRecordService struct {
	repo      repository.GradeRecordRepository
	refs      repository.ReferenceRepository
	validator *validator.Validate
	audit     AuditRecorder
	events    GradeEventBroadcaster
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewGradeRecordService constructs the grade record engine.
func NewGradeRecordService(repo repository.GradeRecordRepository, refs repository.ReferenceRepository, validate *validator.Validate, audit AuditRecorder, events GradeEventBroadcaster, logger zerolog.Logger) GradeRecordService {
	return &gradeRecordService{
		repo:      repo,
		refs:      refs,
		validator: validate,
		audit:     audit,
		events:    events,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "grade_record_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/uni-records-api/internal/service/grade_record"),
		now:       time.Now,
	}
}

// applyDerivation runs the full pipeline over the record's assessments and
// writes every derived field back. Returns whether the assessment weights
// exceed the budget.
func (s *gradeRecordService) applyDerivation(record *models.GradeRecord) bool {
	derived := grading.Derive(record.Assessments, grading.Scale(record.GPAScale), record.CreditHours)

	record.TotalScore = derived.TotalScore
	record.MaxTotalScore = derived.MaxTotalScore
	record.Percentage = derived.Percentage
	record.FinalGrade = derived.FinalGrade
	record.GradePoint = derived.GradePoint
	record.QualityPoints = derived.QualityPoints
	record.ResultStatus = derived.ResultStatus
	record.AcademicStanding = derived.AcademicStanding
	record.HonorRoll = derived.AcademicStanding == models.StandingExcellent

	observability.GradeDerivations().WithLabelValues(string(derived.ResultStatus)).Inc()

	if derived.OverWeighted {
		s.logger.Warn().
			Uint("record_id", record.ID).
			Float64("total_weight", derived.TotalWeight).
			Msg("assessment weights exceed budget")
	}

	return derived.OverWeighted
}

func (s *gradeRecordService) Create(ctx context.Context, payload dto.GradeRecordCreateRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grade_record.create", trace.WithAttributes(
		attribute.Int64("grade_record.student_id", int64(payload.StudentID)),
		attribute.Int64("grade_record.course_id", int64(payload.CourseID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeRecordResponse{}, err
	}

	if err := validateAssessmentInputs(payload.Assessments); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.GradeRecordResponse{}, err
	}

	if err := s.checkReferences(ctx, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference_not_found")
		return dto.GradeRecordResponse{}, err
	}

	existing, err := s.repo.FindByIdentity(ctx, payload.StudentID, payload.CourseID, payload.Term, payload.AcademicYear)
	if err == nil {
		err = fmt.Errorf("%w: record %d", ErrDuplicateRecord, existing.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate_record")
		return dto.GradeRecordResponse{}, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity_lookup_failed")
		return dto.GradeRecordResponse{}, err
	}

	scale := payload.GPAScale
	if scale == 0 {
		scale = float64(grading.Scale4)
	}

	record := models.GradeRecord{
		StudentID:        payload.StudentID,
		CourseID:         payload.CourseID,
		DepartmentID:     payload.DepartmentID,
		InstructorID:     payload.InstructorID,
		Program:          payload.Program,
		Section:          payload.Section,
		Year:             payload.Year,
		Semester:         payload.Semester,
		Term:             payload.Term,
		AcademicYear:     payload.AcademicYear,
		CreditHours:      payload.CreditHours,
		GPAScale:         scale,
		Assessments:      assessmentsFromInputs(payload.Assessments),
		ModerationStatus: models.ModerationNone,
		AppealStatus:     models.AppealNone,
		CreatedBy:        actor.ID,
		UpdatedBy:        actor.ID,
		Version:          1,
		IsActive:         true,
	}

	warning := s.applyDerivation(&record)

	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_failed")
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.GradeRecordResponse{}, ErrDuplicateRecord
		}
		return dto.GradeRecordResponse{}, err
	}

	s.recordAudit(ctx, actor, "grade_record.created", record.ID, map[string]interface{}{
		"student_id":  record.StudentID,
		"course_id":   record.CourseID,
		"term":        record.Term,
		"final_grade": record.FinalGrade,
	})

	span.SetAttributes(attribute.String("grade_record.final_grade", record.FinalGrade))
	return dto.NewGradeRecordResponse(record, warning), nil
}

func (s *gradeRecordService) BulkCreate(ctx context.Context, payload dto.BulkGradeRecordCreateRequest, actor AuditActor) (dto.BulkGradeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grade_record.bulk_create", trace.WithAttributes(
		attribute.Int("grade_record.batch_size", len(payload.Items)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BulkGradeRecordResponse{}, err
	}

	response := dto.BulkGradeRecordResponse{
		BatchID: uuid.NewString(),
		Results: make([]dto.BulkItemResult, 0, len(payload.Items)),
	}

	for i, item := range payload.Items {
		created, err := s.Create(ctx, item, actor)
		if err != nil {
			response.Failed++
			response.Results = append(response.Results, dto.BulkItemResult{Index: i, Error: err.Error()})
			continue
		}
		response.Succeeded++
		response.Results = append(response.Results, dto.BulkItemResult{Index: i, Record: &created})
	}

	span.SetAttributes(
		attribute.Int("grade_record.succeeded", response.Succeeded),
		attribute.Int("grade_record.failed", response.Failed),
	)
	return response, nil
}

func (s *gradeRecordService) BulkUpdate(ctx context.Context, payload dto.BulkGradeRecordUpdateRequest, actor AuditActor) (dto.BulkGradeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grade_record.bulk_update", trace.WithAttributes(
		attribute.Int("grade_record.batch_size", len(payload.Items)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BulkGradeRecordResponse{}, err
	}

	response := dto.BulkGradeRecordResponse{
		BatchID: uuid.NewString(),
		Results: make([]dto.BulkItemResult, 0, len(payload.Items)),
	}

	for i, item := range payload.Items {
		updated, err := s.Update(ctx, item.ID, item.Patch, actor)
		if err != nil {
			response.Failed++
			response.Results = append(response.Results, dto.BulkItemResult{Index: i, Error: err.Error()})
			continue
		}
		response.Succeeded++
		response.Results = append(response.Results, dto.BulkItemResult{Index: i, Record: &updated})
	}

	span.SetAttributes(
		attribute.Int("grade_record.succeeded", response.Succeeded),
		attribute.Int("grade_record.failed", response.Failed),
	)
	return response, nil
}

func (s *gradeRecordService) Get(ctx context.Context, id uint) (dto.GradeRecordResponse, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return dto.GradeRecordResponse{}, err
	}
	return dto.NewGradeRecordResponse(record, grading.Aggregate(record.Assessments).OverWeighted()), nil
}

func (s *gradeRecordService) List(ctx context.Context, filter repository.GradeRecordFilter) ([]dto.GradeRecordResponse, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GradeRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewGradeRecordResponse(record, grading.Aggregate(record.Assessments).OverWeighted()))
	}
	return responses, nil
}

func (s *gradeRecordService) Update(ctx context.Context, id uint, payload dto.GradeRecordUpdateRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grade_record.update", trace.WithAttributes(
		attribute.Int64("grade_record.id", int64(id)),
		attribute.Bool("grade_record.force", payload.Force),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeRecordResponse{}, err
	}

	record, err := s.getRecord(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_lookup_failed")
		return dto.GradeRecordResponse{}, err
	}

	if record.IsLocked {
		span.SetStatus(codes.Error, "record_locked")
		return dto.GradeRecordResponse{}, ErrRecordLocked
	}
	if record.IsPublished && !payload.Force {
		span.SetStatus(codes.Error, "record_published")
		return dto.GradeRecordResponse{}, ErrRecordPublished
	}
	if payload.Version != record.Version {
		span.SetStatus(codes.Error, "version_conflict")
		return dto.GradeRecordResponse{}, ErrVersionConflict
	}

	if payload.Assessments != nil {
		if err := validateAssessmentInputs(*payload.Assessments); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "score_exceeds_max")
			return dto.GradeRecordResponse{}, err
		}
		record.Assessments = assessmentsFromInputs(*payload.Assessments)
	}
	if payload.GPAScale != nil {
		record.GPAScale = *payload.GPAScale
	}
	if payload.CreditHours != nil {
		record.CreditHours = *payload.CreditHours
	}
	if payload.InstructorID != nil {
		record.InstructorID = *payload.InstructorID
	}
	if payload.Program != nil {
		record.Program = *payload.Program
	}
	if payload.Section != nil {
		record.Section = *payload.Section
	}
	record.UpdatedBy = actor.ID

	warning := s.applyDerivation(&record)

	if err := s.persist(ctx, &record, payload.Version); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update_failed")
		return dto.GradeRecordResponse{}, err
	}

	s.recordAudit(ctx, actor, "grade_record.updated", record.ID, map[string]interface{}{
		"final_grade": record.FinalGrade,
		"percentage":  record.Percentage,
		"version":     record.Version,
		"force":       payload.Force,
	})

	span.SetAttributes(attribute.String("grade_record.final_grade", record.FinalGrade))
	return dto.NewGradeRecordResponse(record, warning), nil
}

func (s *gradeRecordService) Delete(ctx context.Context, id uint, actor AuditActor) error {
	ctx, span := s.tracer.Start(ctx, "grade_record.delete", trace.WithAttributes(
		attribute.Int64("grade_record.id", int64(id)),
	))
	defer span.End()

	record, err := s.getRecord(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if record.IsLocked {
		span.SetStatus(codes.Error, "record_locked")
		return ErrRecordLocked
	}
	if record.IsPublished {
		span.SetStatus(codes.Error, "record_published")
		return ErrRecordPublished
	}

	record.IsActive = false
	record.UpdatedBy = actor.ID

	if err := s.persist(ctx, &record, record.Version); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete_failed")
		return err
	}

	s.recordAudit(ctx, actor, "grade_record.deleted", record.ID, nil)
	return nil
}

func (s *gradeRecordService) Lock(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.transition(ctx, id, actor, "grade_record.locked", func(record *models.GradeRecord) error {
		if record.IsLocked {
			return fmt.Errorf("%w: record already locked", ErrStateConflict)
		}
		now := s.now().UTC()
		record.IsLocked = true
		record.LockedBy = &actor.ID
		record.LockedAt = &now
		return nil
	})
}

func (s *gradeRecordService) Unlock(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.transition(ctx, id, actor, "grade_record.unlocked", func(record *models.GradeRecord) error {
		if !record.IsLocked {
			return fmt.Errorf("%w: record not locked", ErrStateConflict)
		}
		record.IsLocked = false
		record.LockedBy = nil
		record.LockedAt = nil
		return nil
	})
}

func (s *gradeRecordService) Publish(ctx context.Context, id uint, publish bool, actor AuditActor) (dto.GradeRecordResponse, error) {
	var event *models.GradeEvent

	response, err := s.transition(ctx, id, actor, "grade_record.publish_toggled", func(record *models.GradeRecord) error {
		if record.IsPublished == publish {
			return nil
		}

		if publish {
			if !record.HasComputedGrade() {
				return ErrIncompleteRecord
			}
			now := s.now().UTC()
			record.IsPublished = true
			record.PublishedBy = &actor.ID
			record.PublishedDate = &now
			event = &models.GradeEvent{
				StudentID:     record.StudentID,
				GradeRecordID: record.ID,
				Type:          models.GradeEventPublished,
				Message:       fmt.Sprintf("Final grade %s published for course %d", record.FinalGrade, record.CourseID),
			}
			return nil
		}

		record.IsPublished = false
		record.PublishedBy = nil
		record.PublishedDate = nil
		event = &models.GradeEvent{
			StudentID:     record.StudentID,
			GradeRecordID: record.ID,
			Type:          models.GradeEventUnpublished,
			Message:       fmt.Sprintf("Grade for course %d was retracted", record.CourseID),
		}
		return nil
	})
	if err != nil {
		return dto.GradeRecordResponse{}, err
	}

	if event != nil && s.events != nil {
		s.events.Broadcast(ctx, *event)
	}
	return response, nil
}

func (s *gradeRecordService) Verify(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.transition(ctx, id, actor, "grade_record.verified", func(record *models.GradeRecord) error {
		if record.IsVerified {
			return nil
		}
		now := s.now().UTC()
		record.IsVerified = true
		record.VerifiedBy = &actor.ID
		record.VerifiedDate = &now
		return nil
	})
}

func (s *gradeRecordService) SubmitModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	return s.transition(ctx, id, actor, "grade_record.moderation_submitted", func(record *models.GradeRecord) error {
		if record.ModerationStatus != models.ModerationNone {
			return fmt.Errorf("%w: moderation already %s", ErrStateConflict, record.ModerationStatus)
		}
		record.ModerationStatus = models.ModerationPending
		record.ModerationNotes = s.sanitizeText(payload.Notes)
		return nil
	})
}

func (s *gradeRecordService) ApproveModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.decideModeration(ctx, id, payload, actor, models.ModerationApproved, "grade_record.moderation_approved")
}

func (s *gradeRecordService) RejectModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.decideModeration(ctx, id, payload, actor, models.ModerationRejected, "grade_record.moderation_rejected")
}

func (s *gradeRecordService) decideModeration(ctx context.Context, id uint, payload dto.ModerationRequest, actor AuditActor, status models.ModerationStatus, action string) (dto.GradeRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	return s.transition(ctx, id, actor, action, func(record *models.GradeRecord) error {
		if record.ModerationStatus != models.ModerationPending {
			return fmt.Errorf("%w: moderation is %s, expected pending", ErrStateConflict, record.ModerationStatus)
		}
		now := s.now().UTC()
		record.ModerationStatus = status
		record.ModeratedBy = &actor.ID
		record.ModeratedAt = &now
		if notes := s.sanitizeText(payload.Notes); notes != "" {
			record.ModerationNotes = notes
		}
		return nil
	})
}

func (s *gradeRecordService) SubmitAppeal(ctx context.Context, id uint, payload dto.AppealSubmitRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	return s.transition(ctx, id, actor, "grade_record.appeal_submitted", func(record *models.GradeRecord) error {
		if !record.CanAppeal() {
			return ErrAppealNotAllowed
		}
		record.AppealStatus = models.AppealRequested
		record.AppealReason = s.sanitizeText(payload.Reason)
		return nil
	})
}

func (s *gradeRecordService) ReviewAppeal(ctx context.Context, id uint, actor AuditActor) (dto.GradeRecordResponse, error) {
	return s.transition(ctx, id, actor, "grade_record.appeal_under_review", func(record *models.GradeRecord) error {
		if record.AppealStatus != models.AppealRequested {
			return fmt.Errorf("%w: appeal is %s, expected requested", ErrStateConflict, record.AppealStatus)
		}
		record.AppealStatus = models.AppealUnderReview
		return nil
	})
}

// DecideAppeal resolves an open appeal. An approved decision may carry an
// override that replaces the final grade, grade point and percentage
// directly; quality points, result status and academic standing are then
// re-derived from the overridden values.
func (s *gradeRecordService) DecideAppeal(ctx context.Context, id uint, payload dto.AppealDecideRequest, actor AuditActor) (dto.GradeRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	var event *models.GradeEvent

	action := "grade_record.appeal_rejected"
	if payload.Approve {
		action = "grade_record.appeal_approved"
	}

	response, err := s.transition(ctx, id, actor, action, func(record *models.GradeRecord) error {
		if record.AppealStatus != models.AppealRequested && record.AppealStatus != models.AppealUnderReview {
			return fmt.Errorf("%w: appeal is %s, expected requested or under review", ErrStateConflict, record.AppealStatus)
		}

		now := s.now().UTC()
		record.AppealDecision = s.sanitizeText(payload.Decision)
		record.AppealDecidedBy = &actor.ID
		record.AppealDecidedDate = &now

		if !payload.Approve {
			record.AppealStatus = models.AppealRejected
		} else {
			record.AppealStatus = models.AppealApproved
			if payload.Override != nil {
				record.FinalGrade = payload.Override.FinalGrade
				record.GradePoint = payload.Override.GradePoint
				record.Percentage = payload.Override.Percentage
				record.QualityPoints, record.ResultStatus, record.AcademicStanding =
					grading.DeriveFromOverride(record.FinalGrade, record.GradePoint, record.CreditHours)
				record.HonorRoll = record.AcademicStanding == models.StandingExcellent
			}
		}

		event = &models.GradeEvent{
			StudentID:     record.StudentID,
			GradeRecordID: record.ID,
			Type:          models.GradeEventAppealDecided,
			Message:       fmt.Sprintf("Appeal %s for course %d", record.AppealStatus, record.CourseID),
		}
		return nil
	})
	if err != nil {
		return dto.GradeRecordResponse{}, err
	}

	if event != nil && s.events != nil {
		s.events.Broadcast(ctx, *event)
	}
	return response, nil
}

// transition loads the record, applies the mutation and persists it with the
// version guard, recording an audit entry on success. Lifecycle transitions
// bypass the lock/publish edit checks: the axes are independent.
func (s *gradeRecordService) transition(ctx context.Context, id uint, actor AuditActor, action string, mutate func(*models.GradeRecord) error) (dto.GradeRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, action, trace.WithAttributes(
		attribute.Int64("grade_record.id", int64(id)),
	))
	defer span.End()

	record, err := s.getRecord(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record_lookup_failed")
		return dto.GradeRecordResponse{}, err
	}

	expectedVersion := record.Version
	record.UpdatedBy = actor.ID

	if err := mutate(&record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_rejected")
		return dto.GradeRecordResponse{}, err
	}

	if err := s.persist(ctx, &record, expectedVersion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_persist_failed")
		return dto.GradeRecordResponse{}, err
	}

	s.recordAudit(ctx, actor, action, record.ID, map[string]interface{}{
		"is_locked":         record.IsLocked,
		"is_published":      record.IsPublished,
		"moderation_status": string(record.ModerationStatus),
		"appeal_status":     string(record.AppealStatus),
	})

	return dto.NewGradeRecordResponse(record, grading.Aggregate(record.Assessments).OverWeighted()), nil
}

func (s *gradeRecordService) getRecord(ctx context.Context, id uint) (models.GradeRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradeRecord{}, ErrRecordNotFound
		}
		return models.GradeRecord{}, err
	}
	return record, nil
}

func (s *gradeRecordService) persist(ctx context.Context, record *models.GradeRecord, expectedVersion int) error {
	if err := s.repo.Update(ctx, record, expectedVersion); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

func (s *gradeRecordService) checkReferences(ctx context.Context, payload dto.GradeRecordCreateRequest) error {
	checks := []struct {
		name   string
		id     uint
		lookup func(context.Context, uint) (bool, error)
	}{
		{"student", payload.StudentID, s.refs.StudentExists},
		{"course", payload.CourseID, s.refs.CourseExists},
		{"department", payload.DepartmentID, s.refs.DepartmentExists},
		{"instructor", payload.InstructorID, s.refs.InstructorExists},
	}

	for _, check := range checks {
		exists, err := check.lookup(ctx, check.id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s %d", ErrReferenceNotFound, check.name, check.id)
		}
	}
	return nil
}

func (s *gradeRecordService) recordAudit(ctx context.Context, actor AuditActor, action string, recordID uint, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	id := recordID
	if _, err := s.audit.Record(ctx, AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "grade_record",
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("record_id", recordID).Str("action", action).Msg("failed to record audit entry")
	}
}

func (s *gradeRecordService) sanitizeText(input string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(input))
}

// validateAssessmentInputs enforces the one constraint struct tags cannot
// express: a score above the max is only permitted as extra credit.
func validateAssessmentInputs(inputs []dto.AssessmentInput) error {
	for _, input := range inputs {
		if input.Score > input.MaxScore && !input.IsExtraCredit {
			return fmt.Errorf("%w: %q scored %.2f of %.2f", ErrScoreExceedsMax, input.Title, input.Score, input.MaxScore)
		}
	}
	return nil
}

func assessmentsFromInputs(inputs []dto.AssessmentInput) []models.Assessment {
	assessments := make([]models.Assessment, 0, len(inputs))
	for _, input := range inputs {
		status := models.AssessmentStatus(input.Status)
		if status == "" {
			status = models.AssessmentStatusPending
		}
		assessments = append(assessments, models.Assessment{
			Title:         input.Title,
			Type:          models.AssessmentType(input.Type),
			Score:         input.Score,
			MaxScore:      input.MaxScore,
			Weight:        input.Weight,
			Status:        status,
			IsAbsent:      input.IsAbsent,
			IsExcused:     input.IsExcused,
			IsExtraCredit: input.IsExtraCredit,
			IsGroupWork:   input.IsGroupWork,
			IsAnonymous:   input.IsAnonymous,
			IsModerated:   input.IsModerated,
			AttemptCount:  input.AttemptCount,
			TimeSpentMins: input.TimeSpentMins,
			DueDate:       input.DueDate,
			SubmittedAt:   input.SubmittedAt,
		})
	}
	return assessments
}
