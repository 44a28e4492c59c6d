package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

type fakeGradeEventRepo struct {
	events     map[uint]models.GradeEvent
	nextID     uint
	failCreate error
}

func newFakeGradeEventRepo() *fakeGradeEventRepo {
	return &fakeGradeEventRepo{events: make(map[uint]models.GradeEvent)}
}

func (f *fakeGradeEventRepo) Create(ctx context.Context, event *models.GradeEvent) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.nextID++
	event.ID = f.nextID
	event.CreatedAt = time.Now().UTC()
	f.events[event.ID] = *event
	return nil
}

func (f *fakeGradeEventRepo) ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]models.GradeEvent, error) {
	var results []models.GradeEvent
	for _, event := range f.events {
		if event.StudentID == studentID {
			results = append(results, event)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID > results[j].ID })
	if offset >= len(results) {
		return nil, nil
	}
	results = results[offset:]
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func (f *fakeGradeEventRepo) MarkRead(ctx context.Context, id, studentID uint) (models.GradeEvent, error) {
	event, ok := f.events[id]
	if !ok || event.StudentID != studentID {
		return models.GradeEvent{}, gorm.ErrRecordNotFound
	}
	if event.ReadAt == nil {
		now := time.Now().UTC()
		event.ReadAt = &now
		f.events[id] = event
	}
	return event, nil
}

func TestGradeEventServiceBroadcastPersistsAndDelivers(t *testing.T) {
	repo := newFakeGradeEventRepo()
	svc := NewGradeEventService(repo, nil, "", nil, testLogger())

	stream, cancel := svc.Subscribe(1)
	defer cancel()

	svc.Broadcast(context.Background(), models.GradeEvent{
		StudentID:     1,
		GradeRecordID: 5,
		Type:          models.GradeEventPublished,
		Message:       "Final grade A- published for course 10",
	})

	require.Len(t, repo.events, 1)

	select {
	case event := <-stream:
		require.Equal(t, uint(1), event.StudentID)
		require.Equal(t, string(models.GradeEventPublished), event.Type)
		require.Equal(t, "Final grade A- published for course 10", event.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a delivered event")
	}
}

func TestGradeEventServiceBroadcastSanitizesMessage(t *testing.T) {
	repo := newFakeGradeEventRepo()
	svc := NewGradeEventService(repo, nil, "", nil, testLogger())

	svc.Broadcast(context.Background(), models.GradeEvent{
		StudentID: 1,
		Type:      models.GradeEventPublished,
		Message:   "<b>grade</b> published",
	})

	require.Equal(t, "grade published", repo.events[1].Message)
}

func TestGradeEventServiceBroadcastOnlyReachesOwningStudent(t *testing.T) {
	svc := NewGradeEventService(newFakeGradeEventRepo(), nil, "", nil, testLogger())

	mine, cancelMine := svc.Subscribe(1)
	defer cancelMine()
	other, cancelOther := svc.Subscribe(2)
	defer cancelOther()

	svc.Broadcast(context.Background(), models.GradeEvent{
		StudentID: 1,
		Type:      models.GradeEventPublished,
		Message:   "published",
	})

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("expected the owning student to receive the event")
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for another student: %+v", event)
	default:
	}
}

func TestGradeEventServiceBroadcastPersistFailureIsSwallowed(t *testing.T) {
	repo := newFakeGradeEventRepo()
	repo.failCreate = errFakeStorage
	svc := NewGradeEventService(repo, nil, "", nil, testLogger())

	stream, cancel := svc.Subscribe(1)
	defer cancel()

	svc.Broadcast(context.Background(), models.GradeEvent{StudentID: 1, Type: models.GradeEventPublished})

	// Nothing was persisted, so nothing is delivered either.
	select {
	case event := <-stream:
		t.Fatalf("unexpected event after persist failure: %+v", event)
	default:
	}
}

func TestGradeEventServiceCancelStopsDelivery(t *testing.T) {
	svc := NewGradeEventService(newFakeGradeEventRepo(), nil, "", nil, testLogger())

	stream, cancel := svc.Subscribe(1)
	cancel()
	// A second cancel is a no-op.
	cancel()

	svc.Broadcast(context.Background(), models.GradeEvent{StudentID: 1, Type: models.GradeEventPublished})

	if _, ok := <-stream; ok {
		t.Fatal("expected a closed channel after cancel")
	}
}

func TestGradeEventServiceListAndMarkRead(t *testing.T) {
	repo := newFakeGradeEventRepo()
	svc := NewGradeEventService(repo, nil, "", nil, testLogger())
	ctx := context.Background()

	svc.Broadcast(ctx, models.GradeEvent{StudentID: 1, Type: models.GradeEventPublished, Message: "first"})
	svc.Broadcast(ctx, models.GradeEvent{StudentID: 1, Type: models.GradeEventUnpublished, Message: "second"})
	svc.Broadcast(ctx, models.GradeEvent{StudentID: 2, Type: models.GradeEventPublished, Message: "someone else"})

	events, err := svc.List(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "second", events[0].Message)
	require.Nil(t, events[0].ReadAt)

	read, err := svc.MarkRead(ctx, events[0].ID, 1)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	// Marking again keeps the original timestamp.
	again, err := svc.MarkRead(ctx, events[0].ID, 1)
	require.NoError(t, err)
	require.Equal(t, read.ReadAt, again.ReadAt)

	// Another student's event is invisible.
	_, err = svc.MarkRead(ctx, events[0].ID, 2)
	require.ErrorIs(t, err, ErrEventNotFound)
}
