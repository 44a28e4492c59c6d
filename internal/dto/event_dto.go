package dto

import (
	"time"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// GradeEventResponse serializes a grade lifecycle event.
type GradeEventResponse struct {
	ID            uint       `json:"id"`
	StudentID     uint       `json:"student_id"`
	GradeRecordID uint       `json:"grade_record_id"`
	Type          string     `json:"type"`
	Message       string     `json:"message"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewGradeEventResponse converts a grade event model into a DTO.
func NewGradeEventResponse(event models.GradeEvent) GradeEventResponse {
	return GradeEventResponse{
		ID:            event.ID,
		StudentID:     event.StudentID,
		GradeRecordID: event.GradeRecordID,
		Type:          string(event.Type),
		Message:       event.Message,
		ReadAt:        event.ReadAt,
		CreatedAt:     event.CreatedAt,
	}
}
