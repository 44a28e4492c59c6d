package dto

import (
	"time"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// AssessmentInput captures one scored component in create/update payloads.
type AssessmentInput struct {
	Title         string     `json:"title" validate:"required,min=1,max=255"`
	Type          string     `json:"type" validate:"required,oneof=assignment quiz midterm final project presentation lab_work participation attendance thesis dissertation portfolio practical_exam oral_exam peer_review"`
	Score         float64    `json:"score" validate:"gte=0"`
	MaxScore      float64    `json:"max_score" validate:"gt=0"`
	Weight        float64    `json:"weight" validate:"gte=0,lte=100"`
	Status        string     `json:"status" validate:"omitempty,oneof=pending graded appealed regraded exempted"`
	IsAbsent      bool       `json:"is_absent"`
	IsExcused     bool       `json:"is_excused"`
	IsExtraCredit bool       `json:"is_extra_credit"`
	IsGroupWork   bool       `json:"is_group_work"`
	IsAnonymous   bool       `json:"is_anonymous"`
	IsModerated   bool       `json:"is_moderated"`
	AttemptCount  int        `json:"attempt_count" validate:"gte=0"`
	TimeSpentMins int        `json:"time_spent_mins" validate:"gte=0"`
	DueDate       *time.Time `json:"due_date"`
	SubmittedAt   *time.Time `json:"submitted_at"`
}

// GradeRecordCreateRequest captures the payload for creating a grade record.
type GradeRecordCreateRequest struct {
	StudentID    uint              `json:"student_id" validate:"required"`
	CourseID     uint              `json:"course_id" validate:"required"`
	DepartmentID uint              `json:"department_id" validate:"required"`
	InstructorID uint              `json:"instructor_id" validate:"required"`
	Program      string            `json:"program" validate:"omitempty,max=128"`
	Section      string            `json:"section" validate:"omitempty,max=32"`
	Year         int               `json:"year" validate:"required,gte=1,lte=5"`
	Semester     int               `json:"semester" validate:"required,gte=1,lte=12"`
	Term         string            `json:"term" validate:"required,max=32"`
	AcademicYear string            `json:"academic_year" validate:"required,max=16"`
	CreditHours  float64           `json:"credit_hours" validate:"required,gt=0"`
	GPAScale     float64           `json:"gpa_scale" validate:"omitempty,eq=4|eq=5|eq=10"`
	Assessments  []AssessmentInput `json:"assessments" validate:"omitempty,dive"`
}

// GradeRecordUpdateRequest allows patching a record's gradable fields. The
// version must match the stored record for the write to apply.
type GradeRecordUpdateRequest struct {
	Assessments  *[]AssessmentInput `json:"assessments" validate:"omitempty,dive"`
	GPAScale     *float64           `json:"gpa_scale" validate:"omitempty,eq=4|eq=5|eq=10"`
	CreditHours  *float64           `json:"credit_hours" validate:"omitempty,gt=0"`
	InstructorID *uint              `json:"instructor_id"`
	Program      *string            `json:"program" validate:"omitempty,max=128"`
	Section      *string            `json:"section" validate:"omitempty,max=32"`
	Version      int                `json:"version" validate:"required,gte=1"`
	Force        bool               `json:"force"`
}

// PublishRequest toggles the published state of a record.
type PublishRequest struct {
	IsPublished bool `json:"is_published"`
}

// ModerationRequest carries reviewer notes through the moderation workflow.
type ModerationRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=5000"`
}

// AppealSubmitRequest opens an appeal on a published record.
type AppealSubmitRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=5000"`
}

// AppealOverride carries the replacement grade values for an approved appeal.
type AppealOverride struct {
	FinalGrade string  `json:"final_grade" validate:"required,max=4"`
	GradePoint float64 `json:"grade_point" validate:"gte=0"`
	Percentage float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// AppealDecideRequest resolves an appeal. An approval may carry an override
// that replaces the derived grade outright.
type AppealDecideRequest struct {
	Approve  bool            `json:"approve"`
	Decision string          `json:"decision" validate:"required,min=5,max=5000"`
	Override *AppealOverride `json:"override" validate:"omitempty"`
}

// BulkGradeRecordCreateRequest wraps an ordered batch of create payloads.
type BulkGradeRecordCreateRequest struct {
	Items []GradeRecordCreateRequest `json:"items" validate:"required,min=1,dive"`
}

// BulkGradeRecordUpdateItem pairs a record identifier with its patch.
type BulkGradeRecordUpdateItem struct {
	ID    uint                     `json:"id" validate:"required"`
	Patch GradeRecordUpdateRequest `json:"patch" validate:"required"`
}

// BulkGradeRecordUpdateRequest wraps an ordered batch of update payloads.
type BulkGradeRecordUpdateRequest struct {
	Items []BulkGradeRecordUpdateItem `json:"items" validate:"required,min=1,dive"`
}

// BulkItemResult reports the outcome of one item in a bulk operation.
type BulkItemResult struct {
	Index  int                  `json:"index"`
	Record *GradeRecordResponse `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BulkGradeRecordResponse collects per-item outcomes; a failed item never
// aborts the rest of the batch.
type BulkGradeRecordResponse struct {
	BatchID   string           `json:"batch_id"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

// AssessmentResponse serializes one assessment.
type AssessmentResponse struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Score         float64    `json:"score"`
	MaxScore      float64    `json:"max_score"`
	Weight        float64    `json:"weight"`
	Status        string     `json:"status"`
	IsAbsent      bool       `json:"is_absent"`
	IsExcused     bool       `json:"is_excused"`
	IsExtraCredit bool       `json:"is_extra_credit"`
	IsGroupWork   bool       `json:"is_group_work"`
	IsAnonymous   bool       `json:"is_anonymous"`
	IsModerated   bool       `json:"is_moderated"`
	AttemptCount  int        `json:"attempt_count"`
	TimeSpentMins int        `json:"time_spent_mins"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

// GradeRecordResponse serializes a grade record aggregate.
type GradeRecordResponse struct {
	ID           uint    `json:"id"`
	StudentID    uint    `json:"student_id"`
	CourseID     uint    `json:"course_id"`
	DepartmentID uint    `json:"department_id"`
	InstructorID uint    `json:"instructor_id"`
	Program      string  `json:"program"`
	Section      string  `json:"section"`
	Year         int     `json:"year"`
	Semester     int     `json:"semester"`
	Term         string  `json:"term"`
	AcademicYear string  `json:"academic_year"`
	CreditHours  float64 `json:"credit_hours"`
	GPAScale     float64 `json:"gpa_scale"`

	Assessments []AssessmentResponse `json:"assessments"`

	TotalScore       float64 `json:"total_score"`
	MaxTotalScore    float64 `json:"max_total_score"`
	Percentage       float64 `json:"percentage"`
	FinalGrade       string  `json:"final_grade"`
	GradePoint       float64 `json:"grade_point"`
	QualityPoints    float64 `json:"quality_points"`
	ResultStatus     string  `json:"result_status"`
	AcademicStanding string  `json:"academic_standing"`
	HonorRoll        bool    `json:"honor_roll"`
	WeightWarning    bool    `json:"weight_warning"`

	IsLocked      bool       `json:"is_locked"`
	LockedBy      *uint      `json:"locked_by,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	IsVerified    bool       `json:"is_verified"`
	VerifiedBy    *uint      `json:"verified_by,omitempty"`
	VerifiedDate  *time.Time `json:"verified_date,omitempty"`
	IsPublished   bool       `json:"is_published"`
	PublishedBy   *uint      `json:"published_by,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`

	ModerationStatus string     `json:"moderation_status"`
	ModeratedBy      *uint      `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time `json:"moderated_at,omitempty"`
	ModerationNotes  string     `json:"moderation_notes,omitempty"`

	AppealStatus      string     `json:"appeal_status"`
	AppealReason      string     `json:"appeal_reason,omitempty"`
	AppealDecision    string     `json:"appeal_decision,omitempty"`
	AppealDecidedBy   *uint      `json:"appeal_decided_by,omitempty"`
	AppealDecidedDate *time.Time `json:"appeal_decided_date,omitempty"`

	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAssessmentResponse converts an assessment model into a DTO.
func NewAssessmentResponse(a models.Assessment) AssessmentResponse {
	return AssessmentResponse{
		ID:            a.ID,
		Title:         a.Title,
		Type:          string(a.Type),
		Score:         a.Score,
		MaxScore:      a.MaxScore,
		Weight:        a.Weight,
		Status:        string(a.Status),
		IsAbsent:      a.IsAbsent,
		IsExcused:     a.IsExcused,
		IsExtraCredit: a.IsExtraCredit,
		IsGroupWork:   a.IsGroupWork,
		IsAnonymous:   a.IsAnonymous,
		IsModerated:   a.IsModerated,
		AttemptCount:  a.AttemptCount,
		TimeSpentMins: a.TimeSpentMins,
		DueDate:       a.DueDate,
		SubmittedAt:   a.SubmittedAt,
	}
}

// NewGradeRecordResponse converts a grade record model into a DTO.
func NewGradeRecordResponse(record models.GradeRecord, weightWarning bool) GradeRecordResponse {
	assessments := make([]AssessmentResponse, 0, len(record.Assessments))
	for _, a := range record.Assessments {
		assessments = append(assessments, NewAssessmentResponse(a))
	}

	return GradeRecordResponse{
		ID:                record.ID,
		StudentID:         record.StudentID,
		CourseID:          record.CourseID,
		DepartmentID:      record.DepartmentID,
		InstructorID:      record.InstructorID,
		Program:           record.Program,
		Section:           record.Section,
		Year:              record.Year,
		Semester:          record.Semester,
		Term:              record.Term,
		AcademicYear:      record.AcademicYear,
		CreditHours:       record.CreditHours,
		GPAScale:          record.GPAScale,
		Assessments:       assessments,
		TotalScore:        record.TotalScore,
		MaxTotalScore:     record.MaxTotalScore,
		Percentage:        record.Percentage,
		FinalGrade:        record.FinalGrade,
		GradePoint:        record.GradePoint,
		QualityPoints:     record.QualityPoints,
		ResultStatus:      string(record.ResultStatus),
		AcademicStanding:  string(record.AcademicStanding),
		HonorRoll:         record.HonorRoll,
		WeightWarning:     weightWarning,
		IsLocked:          record.IsLocked,
		LockedBy:          record.LockedBy,
		LockedAt:          record.LockedAt,
		IsVerified:        record.IsVerified,
		VerifiedBy:        record.VerifiedBy,
		VerifiedDate:      record.VerifiedDate,
		IsPublished:       record.IsPublished,
		PublishedBy:       record.PublishedBy,
		PublishedDate:     record.PublishedDate,
		ModerationStatus:  string(record.ModerationStatus),
		ModeratedBy:       record.ModeratedBy,
		ModeratedAt:       record.ModeratedAt,
		ModerationNotes:   record.ModerationNotes,
		AppealStatus:      string(record.AppealStatus),
		AppealReason:      record.AppealReason,
		AppealDecision:    record.AppealDecision,
		AppealDecidedBy:   record.AppealDecidedBy,
		AppealDecidedDate: record.AppealDecidedDate,
		Version:           record.Version,
		IsActive:          record.IsActive,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}
