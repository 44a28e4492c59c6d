package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

type fakeAuditLogRepo struct {
	entries    []models.AuditLog
	nextID     uint
	failCreate error
}

func (f *fakeAuditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	entry.ID = f.nextID
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditLogRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, int64, error) {
	var matched []models.AuditLog
	for _, entry := range f.entries {
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		matched = append(matched, entry)
	}

	total := int64(len(matched))
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * filter.PageSize
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func TestAuditServiceRecordNormalizesEntry(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	svc := NewAuditService(repo, testLogger())

	entityID := uint(42)
	entry, err := svc.Record(context.Background(), AuditEntry{
		ActorID:    7,
		ActorRole:  " Registrar ",
		Action:     "Publish",
		EntityType: "GradeRecord",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"term":    "Fall",
			"":        "dropped",
			"channel": make(chan int),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "registrar", entry.ActorRole)
	require.Equal(t, "publish", entry.Action)
	require.Equal(t, "graderecord", entry.EntityType)
	require.Equal(t, "Fall", entry.Metadata["term"])
	require.NotContains(t, entry.Metadata, "")
	require.NotContains(t, entry.Metadata, "channel")
}

func TestAuditServiceRecordMasksEmailMetadata(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	svc := NewAuditService(repo, testLogger())

	entry, err := svc.Record(context.Background(), AuditEntry{
		ActorID:    7,
		Action:     "update",
		EntityType: "grade_record",
		Metadata: map[string]interface{}{
			"student_email": "amina.yusuf@example.edu",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "a***f@example.edu", entry.Metadata["student_email"])
}

func TestAuditServiceRecordRequiresAction(t *testing.T) {
	svc := NewAuditService(&fakeAuditLogRepo{}, testLogger())

	_, err := svc.Record(context.Background(), AuditEntry{EntityType: "grade_record"})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), AuditEntry{Action: "update"})
	require.Error(t, err)
}

func TestAuditServiceListFiltersAndPaginates(t *testing.T) {
	repo := &fakeAuditLogRepo{}
	svc := NewAuditService(repo, testLogger())

	for range [3]struct{}{} {
		_, err := svc.Record(context.Background(), AuditEntry{ActorID: 7, Action: "update", EntityType: "grade_record"})
		require.NoError(t, err)
	}
	_, err := svc.Record(context.Background(), AuditEntry{ActorID: 9, Action: "publish", EntityType: "grade_record"})
	require.NoError(t, err)

	list, err := svc.List(context.Background(), dto.AuditListRequest{ActorID: 7, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(3), list.Pagination.TotalItems)
	require.Equal(t, 2, list.Pagination.TotalPages)

	list, err = svc.List(context.Background(), dto.AuditListRequest{Action: "publish"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, uint(9), list.Items[0].ActorID)
}
