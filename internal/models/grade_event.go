package models

import "time"

// GradeEventType enumerates the record lifecycle transitions broadcast to
// subscribed clients.
type GradeEventType string

const (
	GradeEventPublished     GradeEventType = "grade.published"
	GradeEventUnpublished   GradeEventType = "grade.unpublished"
	GradeEventAppealDecided GradeEventType = "grade.appeal_decided"
)

// GradeEvent is a persisted, broadcastable notification that a grade record
// changed in a way students should see.
type GradeEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	StudentID     uint           `gorm:"not null;index" json:"student_id"`
	GradeRecordID uint           `gorm:"not null" json:"grade_record_id"`
	Type          GradeEventType `gorm:"size:32;not null" json:"type"`
	Message       string         `gorm:"type:text" json:"message"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
