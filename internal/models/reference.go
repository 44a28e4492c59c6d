package models

import "time"

// Student is a minimal reference entity owned by the registry; the grading
// core only needs its identity and display fields.
type Student struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Program        string    `gorm:"size:128" json:"program"`
	EnrollmentYear int       `json:"enrollment_year"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Course is a minimal course reference.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	CreditHours  float64   `gorm:"not null" json:"credit_hours"`
	DepartmentID uint      `gorm:"not null;index" json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Department is a minimal department reference.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:16;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Instructor is a minimal instructor reference.
type Instructor struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DepartmentID uint      `gorm:"index" json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProgramRequirement holds the graduation minimums for a program.
type ProgramRequirement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Program    string    `gorm:"size:128;uniqueIndex;not null" json:"program"`
	MinCredits float64   `gorm:"not null" json:"min_credits"`
	MinGPA     float64   `gorm:"not null" json:"min_gpa"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
