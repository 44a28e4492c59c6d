package dto

import "time"

// GPAFilters narrows the record set used for GPA and transcript aggregation.
type GPAFilters struct {
	AcademicYear       string `json:"academic_year"`
	Term               string `json:"term"`
	Program            string `json:"program"`
	IncludeUnpublished bool   `json:"include_unpublished"`
	ExcludeIncomplete  bool   `json:"exclude_incomplete"`
}

// GPAResponse summarises the credit-weighted GPA across the selected records.
type GPAResponse struct {
	StudentID          uint      `json:"student_id"`
	GPA                float64   `json:"gpa"`
	TotalCredits       float64   `json:"total_credits"`
	TotalQualityPoints float64   `json:"total_quality_points"`
	CourseCount        int       `json:"course_count"`
	GeneratedAt        time.Time `json:"generated_at"`
	CacheHit           bool      `json:"cache_hit"`
}

// TranscriptCourse is one course row on a transcript.
type TranscriptCourse struct {
	CourseID     uint                 `json:"course_id"`
	CourseCode   string               `json:"course_code"`
	CourseName   string               `json:"course_name"`
	CreditHours  float64              `json:"credit_hours"`
	FinalGrade   string               `json:"final_grade"`
	GradePoint   float64              `json:"grade_point"`
	ResultStatus string               `json:"result_status"`
	Assessments  []AssessmentResponse `json:"assessments,omitempty"`
}

// TranscriptTerm groups transcript rows by academic year and semester with a
// semester-level GPA.
type TranscriptTerm struct {
	AcademicYear  string             `json:"academic_year"`
	Semester      int                `json:"semester"`
	GPA           float64            `json:"gpa"`
	Credits       float64            `json:"credits"`
	QualityPoints float64            `json:"quality_points"`
	Courses       []TranscriptCourse `json:"courses"`
}

// TranscriptResponse is the full structured transcript for one student.
type TranscriptResponse struct {
	StudentID     uint             `json:"student_id"`
	StudentName   string           `json:"student_name"`
	Program       string           `json:"program"`
	Terms         []TranscriptTerm `json:"terms"`
	CumulativeGPA float64          `json:"cumulative_gpa"`
	TotalCredits  float64          `json:"total_credits"`
	GeneratedAt   time.Time        `json:"generated_at"`
	CacheHit      bool             `json:"cache_hit"`
}

// RequirementStatus reports one graduation requirement check.
type RequirementStatus struct {
	Name      string  `json:"name"`
	Required  float64 `json:"required"`
	Actual    float64 `json:"actual"`
	Satisfied bool    `json:"satisfied"`
}

// GraduationStatusResponse reports graduation eligibility for a student.
type GraduationStatusResponse struct {
	StudentID    uint                `json:"student_id"`
	Program      string              `json:"program"`
	Requirements []RequirementStatus `json:"requirements"`
	Eligible     bool                `json:"eligible"`
	GeneratedAt  time.Time           `json:"generated_at"`
}
