package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/models"
)

func newGradeRecordFixture(t *testing.T) (*fakeGradeRecordRepo, *fakeReferenceRepo, *fakeBroadcaster, GradeRecordService) {
	t.Helper()
	repo := newFakeGradeRecordRepo()
	refs := newFakeReferenceRepo()
	refs.students[1] = models.Student{ID: 1, Name: "Amina Yusuf"}
	refs.courses[10] = models.Course{ID: 10, Code: "CS101", Name: "Intro to Computing", CreditHours: 3}
	refs.departments[100] = struct{}{}
	refs.instructors[200] = struct{}{}

	events := &fakeBroadcaster{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeRecordService(repo, refs, validate, nil, events, testLogger())
	return repo, refs, events, svc
}

func createPayload() dto.GradeRecordCreateRequest {
	return dto.GradeRecordCreateRequest{
		StudentID:    1,
		CourseID:     10,
		DepartmentID: 100,
		InstructorID: 200,
		Program:      "BSc Computer Science",
		Section:      "A",
		Year:         2,
		Semester:     3,
		Term:         "Fall",
		AcademicYear: "2025-2026",
		CreditHours:  3,
		GPAScale:     4,
		Assessments: []dto.AssessmentInput{
			{Title: "Midterm", Type: "midterm", Score: 45, MaxScore: 50, Weight: 40},
			{Title: "Final", Type: "final", Score: 18, MaxScore: 20, Weight: 60},
		},
	}
}

func TestGradeRecordServiceCreateDerivesFinalGrade(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	record, err := svc.Create(context.Background(), createPayload(), AuditActor{ID: 7, Role: "registrar"})
	require.NoError(t, err)
	require.InDelta(t, 90.0, record.Percentage, 1e-9)
	require.Equal(t, "A-", record.FinalGrade)
	require.Equal(t, 3.7, record.GradePoint)
	require.InDelta(t, 11.1, record.QualityPoints, 1e-9)
	require.Equal(t, "Pass", record.ResultStatus)
	require.Equal(t, "Excellent", record.AcademicStanding)
	require.Equal(t, 1, record.Version)
	require.True(t, record.IsActive)
	require.False(t, record.WeightWarning)
}

func TestGradeRecordServiceCreateDuplicateRejected(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	_, err := svc.Create(context.Background(), createPayload(), AuditActor{ID: 7})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), createPayload(), AuditActor{ID: 7})
	require.ErrorIs(t, err, ErrDuplicateRecord)
}

func TestGradeRecordServiceCreateMissingReference(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	payload := createPayload()
	payload.StudentID = 999
	_, err := svc.Create(context.Background(), payload, AuditActor{ID: 7})
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestGradeRecordServiceCreateScoreExceedsMax(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	payload := createPayload()
	payload.Assessments[0].Score = 60
	_, err := svc.Create(context.Background(), payload, AuditActor{ID: 7})
	require.ErrorIs(t, err, ErrScoreExceedsMax)
}

func TestGradeRecordServiceCreateExtraCreditMayExceedMax(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	payload := createPayload()
	payload.Assessments[0].Score = 60
	payload.Assessments[0].IsExtraCredit = true
	_, err := svc.Create(context.Background(), payload, AuditActor{ID: 7})
	require.NoError(t, err)
}

func TestGradeRecordServiceCreateOverWeightedIsWarningOnly(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)

	payload := createPayload()
	payload.Assessments[0].Weight = 70
	record, err := svc.Create(context.Background(), payload, AuditActor{ID: 7})
	require.NoError(t, err)
	require.True(t, record.WeightWarning)
}

func TestGradeRecordServiceUpdateRederives(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, createPayload(), AuditActor{ID: 7})
	require.NoError(t, err)

	assessments := []dto.AssessmentInput{
		{Title: "Final", Type: "final", Score: 10, MaxScore: 20, Weight: 100},
	}
	updated, err := svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{
		Assessments: &assessments,
		Version:     created.Version,
	}, AuditActor{ID: 7})
	require.NoError(t, err)
	require.InDelta(t, 50.0, updated.Percentage, 1e-9)
	require.Equal(t, "F", updated.FinalGrade)
	require.Equal(t, "Fail", updated.ResultStatus)
	require.Equal(t, created.Version+1, updated.Version)
}

func TestGradeRecordServiceUpdateStaleVersionRejected(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, createPayload(), AuditActor{ID: 7})
	require.NoError(t, err)

	credits := 4.0
	_, err = svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{
		CreditHours: &credits,
		Version:     created.Version + 5,
	}, AuditActor{ID: 7})
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestGradeRecordServiceLockBlocksUpdates(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7, Role: "registrar"}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)

	locked, err := svc.Lock(ctx, created.ID, actor)
	require.NoError(t, err)
	require.True(t, locked.IsLocked)
	require.NotNil(t, locked.LockedBy)
	require.Equal(t, actor.ID, *locked.LockedBy)

	credits := 4.0
	_, err = svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{CreditHours: &credits, Version: locked.Version}, actor)
	require.ErrorIs(t, err, ErrRecordLocked)

	_, err = svc.Lock(ctx, created.ID, actor)
	require.ErrorIs(t, err, ErrStateConflict)

	unlocked, err := svc.Unlock(ctx, created.ID, actor)
	require.NoError(t, err)
	require.False(t, unlocked.IsLocked)

	_, err = svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{CreditHours: &credits, Version: unlocked.Version}, actor)
	require.NoError(t, err)

	_, err = svc.Unlock(ctx, created.ID, actor)
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestGradeRecordServicePublishRequiresComputedGrade(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7}

	payload := createPayload()
	payload.Assessments = nil
	created, err := svc.Create(ctx, payload, actor)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, created.ID, true, actor)
	require.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestGradeRecordServicePublishEmitsEventAndBlocksEdits(t *testing.T) {
	_, _, events, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7, Role: "registrar"}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)

	published, err := svc.Publish(ctx, created.ID, true, actor)
	require.NoError(t, err)
	require.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedBy)
	require.Len(t, events.events, 1)
	require.Equal(t, models.GradeEventPublished, events.events[0].Type)

	credits := 4.0
	_, err = svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{CreditHours: &credits, Version: published.Version}, actor)
	require.ErrorIs(t, err, ErrRecordPublished)

	// Force override lets an authorized caller through.
	forced, err := svc.Update(ctx, created.ID, dto.GradeRecordUpdateRequest{CreditHours: &credits, Version: published.Version, Force: true}, actor)
	require.NoError(t, err)
	require.Equal(t, 4.0, forced.CreditHours)

	unpublished, err := svc.Publish(ctx, created.ID, false, actor)
	require.NoError(t, err)
	require.False(t, unpublished.IsPublished)
	require.Nil(t, unpublished.PublishedBy)
	require.Len(t, events.events, 2)
	require.Equal(t, models.GradeEventUnpublished, events.events[1].Type)
}

func TestGradeRecordServiceDeleteBlockedByLifecycle(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)

	published, err := svc.Publish(ctx, created.ID, true, actor)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, published.ID, actor), ErrRecordPublished)

	_, err = svc.Publish(ctx, created.ID, false, actor)
	require.NoError(t, err)
	_, err = svc.Lock(ctx, created.ID, actor)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, created.ID, actor), ErrRecordLocked)

	_, err = svc.Unlock(ctx, created.ID, actor)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID, actor))

	record, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, record.IsActive)
}

func TestGradeRecordServiceModerationFlow(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7, Role: "instructor"}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)

	// Approving before submission is a state conflict.
	_, err = svc.ApproveModeration(ctx, created.ID, dto.ModerationRequest{}, actor)
	require.ErrorIs(t, err, ErrStateConflict)

	submitted, err := svc.SubmitModeration(ctx, created.ID, dto.ModerationRequest{Notes: "borderline scores"}, actor)
	require.NoError(t, err)
	require.Equal(t, string(models.ModerationPending), submitted.ModerationStatus)

	_, err = svc.SubmitModeration(ctx, created.ID, dto.ModerationRequest{}, actor)
	require.ErrorIs(t, err, ErrStateConflict)

	approved, err := svc.ApproveModeration(ctx, created.ID, dto.ModerationRequest{Notes: "reviewed"}, AuditActor{ID: 9, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, string(models.ModerationApproved), approved.ModerationStatus)
	require.NotNil(t, approved.ModeratedBy)
	require.Equal(t, uint(9), *approved.ModeratedBy)

	_, err = svc.RejectModeration(ctx, created.ID, dto.ModerationRequest{}, actor)
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestGradeRecordServiceAppealFlowWithOverride(t *testing.T) {
	_, _, events, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7, Role: "registrar"}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)

	// Unpublished records are not appealable.
	_, err = svc.SubmitAppeal(ctx, created.ID, dto.AppealSubmitRequest{Reason: "final exam was misgraded"}, actor)
	require.ErrorIs(t, err, ErrAppealNotAllowed)

	_, err = svc.Publish(ctx, created.ID, true, actor)
	require.NoError(t, err)

	submitted, err := svc.SubmitAppeal(ctx, created.ID, dto.AppealSubmitRequest{Reason: "final exam was misgraded"}, actor)
	require.NoError(t, err)
	require.Equal(t, string(models.AppealRequested), submitted.AppealStatus)

	// A second appeal on the same record is blocked.
	_, err = svc.SubmitAppeal(ctx, created.ID, dto.AppealSubmitRequest{Reason: "again please"}, actor)
	require.ErrorIs(t, err, ErrAppealNotAllowed)

	reviewed, err := svc.ReviewAppeal(ctx, created.ID, AuditActor{ID: 9, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, string(models.AppealUnderReview), reviewed.AppealStatus)

	decided, err := svc.DecideAppeal(ctx, created.ID, dto.AppealDecideRequest{
		Approve:  true,
		Decision: "Regrade confirmed an error in the final exam.",
		Override: &dto.AppealOverride{FinalGrade: "A", GradePoint: 4.0, Percentage: 94},
	}, AuditActor{ID: 9, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, string(models.AppealApproved), decided.AppealStatus)
	require.Equal(t, "A", decided.FinalGrade)
	require.Equal(t, 4.0, decided.GradePoint)
	require.InDelta(t, 12.0, decided.QualityPoints, 1e-9)
	require.Equal(t, "Pass", decided.ResultStatus)
	require.Equal(t, "Excellent", decided.AcademicStanding)

	appealEvents := 0
	for _, event := range events.events {
		if event.Type == models.GradeEventAppealDecided {
			appealEvents++
		}
	}
	require.Equal(t, 1, appealEvents)

	// Deciding twice is a state conflict.
	_, err = svc.DecideAppeal(ctx, created.ID, dto.AppealDecideRequest{Approve: false, Decision: "already decided"}, actor)
	require.ErrorIs(t, err, ErrStateConflict)
}

func TestGradeRecordServiceBulkCreatePartialSuccess(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()

	good := createPayload()
	duplicate := createPayload()
	badRef := createPayload()
	badRef.CourseID = 404
	badRef.Term = "Spring"

	response, err := svc.BulkCreate(ctx, dto.BulkGradeRecordCreateRequest{
		Items: []dto.GradeRecordCreateRequest{good, duplicate, badRef},
	}, AuditActor{ID: 7})
	require.NoError(t, err)
	require.NotEmpty(t, response.BatchID)
	require.Equal(t, 1, response.Succeeded)
	require.Equal(t, 2, response.Failed)
	require.Len(t, response.Results, 3)
	require.NotNil(t, response.Results[0].Record)
	require.Contains(t, response.Results[1].Error, "already exists")
	require.Contains(t, response.Results[2].Error, "course 404")
}

func TestGradeRecordServiceAppealSanitizesReason(t *testing.T) {
	_, _, _, svc := newGradeRecordFixture(t)
	ctx := context.Background()
	actor := AuditActor{ID: 7}

	created, err := svc.Create(ctx, createPayload(), actor)
	require.NoError(t, err)
	_, err = svc.Publish(ctx, created.ID, true, actor)
	require.NoError(t, err)

	submitted, err := svc.SubmitAppeal(ctx, created.ID, dto.AppealSubmitRequest{
		Reason: "<script>alert(1)</script>the rubric was applied inconsistently",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, "the rubric was applied inconsistently", submitted.AppealReason)
}
