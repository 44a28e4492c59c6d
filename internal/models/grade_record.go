package models

import "time"

// AssessmentType enumerates the kinds of scored components a course can carry.
type AssessmentType string

const (
	AssessmentAssignment    AssessmentType = "assignment"
	AssessmentQuiz          AssessmentType = "quiz"
	AssessmentMidterm       AssessmentType = "midterm"
	AssessmentFinal         AssessmentType = "final"
	AssessmentProject       AssessmentType = "project"
	AssessmentPresentation  AssessmentType = "presentation"
	AssessmentLabWork       AssessmentType = "lab_work"
	AssessmentParticipation AssessmentType = "participation"
	AssessmentAttendance    AssessmentType = "attendance"
	AssessmentThesis        AssessmentType = "thesis"
	AssessmentDissertation  AssessmentType = "dissertation"
	AssessmentPortfolio     AssessmentType = "portfolio"
	AssessmentPracticalExam AssessmentType = "practical_exam"
	AssessmentOralExam      AssessmentType = "oral_exam"
	AssessmentPeerReview    AssessmentType = "peer_review"
)

// AssessmentStatus tracks the grading state of a single assessment.
type AssessmentStatus string

const (
	AssessmentStatusPending  AssessmentStatus = "pending"
	AssessmentStatusGraded   AssessmentStatus = "graded"
	AssessmentStatusAppealed AssessmentStatus = "appealed"
	AssessmentStatusRegraded AssessmentStatus = "regraded"
	AssessmentStatusExempted AssessmentStatus = "exempted"
)

// Assessment is one scored component contributing a weighted fraction to the
// final grade of its parent record. Excused assessments stay on the record
// but contribute nothing to aggregation.
type Assessment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	GradeRecordID uint             `gorm:"not null;index" json:"grade_record_id"`
	Title         string           `gorm:"size:255;not null" json:"title"`
	Type          AssessmentType   `gorm:"size:32;not null" json:"type"`
	Score         float64          `gorm:"not null" json:"score"`
	MaxScore      float64          `gorm:"not null" json:"max_score"`
	Weight        float64          `gorm:"not null" json:"weight"`
	Status        AssessmentStatus `gorm:"size:32;not null;default:pending" json:"status"`
	IsAbsent      bool             `json:"is_absent"`
	IsExcused     bool             `json:"is_excused"`
	IsExtraCredit bool             `json:"is_extra_credit"`
	IsGroupWork   bool             `json:"is_group_work"`
	IsAnonymous   bool             `json:"is_anonymous"`
	IsModerated   bool             `json:"is_moderated"`
	AttemptCount  int              `json:"attempt_count"`
	TimeSpentMins int              `json:"time_spent_mins"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ResultStatus is the coarse pass/fail outcome of a grade record.
type ResultStatus string

const (
	ResultPass       ResultStatus = "Pass"
	ResultFail       ResultStatus = "Fail"
	ResultIncomplete ResultStatus = "Incomplete"
)

// AcademicStanding is the performance tier derived from the grade point.
type AcademicStanding string

const (
	StandingExcellent    AcademicStanding = "Excellent"
	StandingGood         AcademicStanding = "Good"
	StandingSatisfactory AcademicStanding = "Satisfactory"
	StandingProbation    AcademicStanding = "Probation"
	StandingSuspension   AcademicStanding = "Suspension"
)

// ModerationStatus models the internal review workflow.
type ModerationStatus string

const (
	ModerationNone     ModerationStatus = "none"
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// AppealStatus models the student-initiated appeal workflow.
type AppealStatus string

const (
	AppealNone        AppealStatus = "none"
	AppealRequested   AppealStatus = "requested"
	AppealUnderReview AppealStatus = "under_review"
	AppealApproved    AppealStatus = "approved"
	AppealRejected    AppealStatus = "rejected"
)

// GradeRecord is the per-student-per-course-per-term grade aggregate. The
// derived fields are always recomputed from the assessments and GPA scale;
// an approved appeal is the only path that overrides them directly.
type GradeRecord struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	StudentID    uint    `gorm:"not null;uniqueIndex:idx_grade_record_identity" json:"student_id"`
	CourseID     uint    `gorm:"not null;uniqueIndex:idx_grade_record_identity" json:"course_id"`
	Term         string  `gorm:"size:32;not null;uniqueIndex:idx_grade_record_identity" json:"term"`
	AcademicYear string  `gorm:"size:16;not null;uniqueIndex:idx_grade_record_identity" json:"academic_year"`
	DepartmentID uint    `gorm:"not null;index" json:"department_id"`
	InstructorID uint    `gorm:"not null" json:"instructor_id"`
	Program      string  `gorm:"size:128" json:"program"`
	Section      string  `gorm:"size:32;index" json:"section"`
	Year         int     `gorm:"not null" json:"year"`
	Semester     int     `gorm:"not null" json:"semester"`
	CreditHours  float64 `gorm:"not null" json:"credit_hours"`
	GPAScale     float64 `gorm:"not null;default:4" json:"gpa_scale"`

	Assessments []Assessment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessments"`

	TotalScore       float64          `json:"total_score"`
	MaxTotalScore    float64          `json:"max_total_score"`
	Percentage       float64          `json:"percentage"`
	FinalGrade       string           `gorm:"size:4" json:"final_grade"`
	GradePoint       float64          `json:"grade_point"`
	QualityPoints    float64          `json:"quality_points"`
	ResultStatus     ResultStatus     `gorm:"size:16" json:"result_status"`
	AcademicStanding AcademicStanding `gorm:"size:16" json:"academic_standing"`
	HonorRoll        bool             `json:"honor_roll"`

	IsLocked      bool       `gorm:"not null;default:false" json:"is_locked"`
	LockedBy      *uint      `json:"locked_by,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	IsVerified    bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedBy    *uint      `json:"verified_by,omitempty"`
	VerifiedDate  *time.Time `json:"verified_date,omitempty"`
	IsPublished   bool       `gorm:"not null;default:false;index" json:"is_published"`
	PublishedBy   *uint      `json:"published_by,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`

	ModerationStatus ModerationStatus `gorm:"size:16;not null;default:none" json:"moderation_status"`
	ModeratedBy      *uint            `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time       `json:"moderated_at,omitempty"`
	ModerationNotes  string           `gorm:"type:text" json:"moderation_notes"`

	AppealStatus      AppealStatus `gorm:"size:16;not null;default:none" json:"appeal_status"`
	AppealReason      string       `gorm:"type:text" json:"appeal_reason"`
	AppealDecision    string       `gorm:"type:text" json:"appeal_decision"`
	AppealDecidedBy   *uint        `json:"appeal_decided_by,omitempty"`
	AppealDecidedDate *time.Time   `json:"appeal_decided_date,omitempty"`

	CreatedBy uint      `json:"created_by"`
	UpdatedBy uint      `json:"updated_by"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasComputedGrade reports whether the derivation pipeline has produced a
// final grade, which publishing requires.
func (r GradeRecord) HasComputedGrade() bool {
	return r.FinalGrade != "" && len(r.Assessments) > 0
}

// Mutable reports whether assessments and derived fields may change.
// Published records may still be edited with an explicit force override.
func (r GradeRecord) Mutable(force bool) bool {
	if r.IsLocked {
		return false
	}
	if r.IsPublished && !force {
		return false
	}
	return true
}

// CanAppeal gates entry into the appeal workflow: only published, active
// records with no appeal on file are appealable.
func (r GradeRecord) CanAppeal() bool {
	return r.IsPublished && r.IsActive && r.AppealStatus == AppealNone
}
