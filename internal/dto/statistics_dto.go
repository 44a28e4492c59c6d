package dto

import "time"

// GradeDistribution maps letter grades to how many records carry them.
type GradeDistribution map[string]int64

// GroupStatistics is one row of a grouped breakdown one level below the
// requested scope, e.g. per course inside a department.
type GroupStatistics struct {
	Key               string  `json:"key"`
	Label             string  `json:"label"`
	StudentCount      int     `json:"student_count"`
	PassCount         int64   `json:"pass_count"`
	FailCount         int64   `json:"fail_count"`
	PassRate          float64 `json:"pass_rate"`
	AverageGradePoint float64 `json:"average_grade_point"`
}

// ScopeStatisticsResponse summarises published grade records in a scope.
type ScopeStatisticsResponse struct {
	Scope             string            `json:"scope"`
	StudentCount      int               `json:"student_count"`
	CourseCount       int               `json:"course_count"`
	RecordCount       int               `json:"record_count"`
	PassCount         int64             `json:"pass_count"`
	FailCount         int64             `json:"fail_count"`
	IncompleteCount   int64             `json:"incomplete_count"`
	PassRate          float64           `json:"pass_rate"`
	AverageGradePoint float64           `json:"average_grade_point"`
	Distribution      GradeDistribution `json:"distribution"`
	Breakdown         []GroupStatistics `json:"breakdown,omitempty"`
	GeneratedAt       time.Time         `json:"generated_at"`
	CacheHit          bool              `json:"cache_hit"`
}

// HonorRollRequest selects and thresholds honor roll candidates.
type HonorRollRequest struct {
	RollType     string  `json:"roll_type" validate:"omitempty,oneof=deans presidents chancellors"`
	MinGPA       float64 `json:"min_gpa" validate:"omitempty,gte=0"`
	MinCredits   float64 `json:"min_credits" validate:"omitempty,gte=0"`
	AcademicYear string  `json:"academic_year"`
	Term         string  `json:"term"`
}

// HonorRollEntry is one ranked honor roll member.
type HonorRollEntry struct {
	Rank         int     `json:"rank"`
	StudentID    uint    `json:"student_id"`
	StudentName  string  `json:"student_name"`
	GPA          float64 `json:"gpa"`
	TotalCredits float64 `json:"total_credits"`
	RollType     string  `json:"roll_type"`
}

// HonorRollResponse lists students clearing both thresholds, ranked by GPA
// descending then name.
type HonorRollResponse struct {
	RollType    string           `json:"roll_type"`
	MinGPA      float64          `json:"min_gpa"`
	MinCredits  float64          `json:"min_credits"`
	Entries     []HonorRollEntry `json:"entries"`
	GeneratedAt time.Time        `json:"generated_at"`
}
