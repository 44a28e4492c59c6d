package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/dto"
	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/observability"
	"github.com/noah-isme/uni-records-api/internal/repository"
)

const gradeEventBufferSize = 16

// ErrEventNotFound indicates the grade event was not located.
var ErrEventNotFound = errors.New("grade event not found")

// GradeEventService persists and streams grade lifecycle events to students.
// Events are fanned out across nodes via Redis pub/sub and NATS so every
// subscriber sees them regardless of which instance handled the change.
type GradeEventService interface {
	GradeEventBroadcaster
	List(ctx context.Context, studentID uint, limit, offset int) ([]dto.GradeEventResponse, error)
	MarkRead(ctx context.Context, id, studentID uint) (dto.GradeEventResponse, error)
	Subscribe(studentID uint) (<-chan dto.GradeEventResponse, func())
	Start(ctx context.Context)
}

type gradeEventService struct {
	repo         repository.GradeEventRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	broker       *gradeEventBroker
	nodeID       string
}

type gradeEventEnvelope struct {
	Source string                 `json:"source"`
	Event  dto.GradeEventResponse `json:"event"`
	SentAt time.Time              `json:"sent_at"`
}

type gradeEventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.GradeEventResponse]struct{}
}

// NewGradeEventService constructs the grade event service. The Redis client
// and NATS connection are both optional; with neither, events still reach
// in-process subscribers.
func NewGradeEventService(repo repository.GradeEventRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) GradeEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grade-events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grade-events"
	}

	return &gradeEventService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "grade_event_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/uni-records-api/internal/service/grade_event"),
		sanitizer:    bluemonday.StrictPolicy(),
		broker: &gradeEventBroker{
			subscribers: make(map[uint]map[chan dto.GradeEventResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *gradeEventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Broadcast persists the event and fans it out. Failures after persistence
// are logged and swallowed: a missed live notification must never fail the
// grade mutation that produced it.
func (s *gradeEventService) Broadcast(ctx context.Context, event models.GradeEvent) {
	ctx, span := s.tracer.Start(ctx, "grade_event.broadcast", trace.WithAttributes(
		attribute.Int64("grade_event.student_id", int64(event.StudentID)),
		attribute.String("grade_event.type", string(event.Type)),
	))
	defer span.End()

	event.Message = strings.TrimSpace(s.sanitizer.Sanitize(event.Message))

	if err := s.repo.Create(ctx, &event); err != nil {
		s.logger.Error().Err(err).Uint("record_id", event.GradeRecordID).Msg("failed to persist grade event")
		span.RecordError(err)
		return
	}

	observability.GradeEvents().WithLabelValues(string(event.Type)).Inc()

	response := dto.NewGradeEventResponse(event)
	s.broker.deliver(response)

	envelope := gradeEventEnvelope{Source: s.nodeID, Event: response, SentAt: time.Now().UTC()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		span.RecordError(err)
		return
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish grade event to redis")
			span.RecordError(err)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish grade event to nats")
			span.RecordError(err)
		}
	}
}

func (s *gradeEventService) List(ctx context.Context, studentID uint, limit, offset int) ([]dto.GradeEventResponse, error) {
	events, err := s.repo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GradeEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, dto.NewGradeEventResponse(event))
	}
	return responses, nil
}

func (s *gradeEventService) MarkRead(ctx context.Context, id, studentID uint) (dto.GradeEventResponse, error) {
	event, err := s.repo.MarkRead(ctx, id, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeEventResponse{}, ErrEventNotFound
		}
		return dto.GradeEventResponse{}, err
	}
	return dto.NewGradeEventResponse(event), nil
}

func (s *gradeEventService) Subscribe(studentID uint) (<-chan dto.GradeEventResponse, func()) {
	return s.broker.subscribe(studentID)
}

func (s *gradeEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer pubsub.Close()

	channel := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-channel:
			if !ok {
				return
			}
			s.handleRemote([]byte(message.Payload))
		}
	}
}

func (s *gradeEventService) consumeNATS(ctx context.Context) {
	subscription, err := s.nats.Subscribe(s.natsSubject, func(message *nats.Msg) {
		s.handleRemote(message.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats grade events")
		return
	}
	defer func() { _ = subscription.Unsubscribe() }()

	<-ctx.Done()
}

func (s *gradeEventService) handleRemote(payload []byte) {
	var envelope gradeEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode remote grade event")
		return
	}
	// Locally produced events were already delivered in Broadcast.
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.deliver(envelope.Event)
}

func (b *gradeEventBroker) subscribe(studentID uint) (<-chan dto.GradeEventResponse, func()) {
	channel := make(chan dto.GradeEventResponse, gradeEventBufferSize)

	b.mu.Lock()
	subscribers, ok := b.subscribers[studentID]
	if !ok {
		subscribers = make(map[chan dto.GradeEventResponse]struct{})
		b.subscribers[studentID] = subscribers
	}
	subscribers[channel] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subscribers, ok := b.subscribers[studentID]; ok {
			if _, present := subscribers[channel]; present {
				delete(subscribers, channel)
				close(channel)
			}
			if len(subscribers) == 0 {
				delete(b.subscribers, studentID)
			}
		}
		b.mu.Unlock()
	}

	return channel, cancel
}

func (b *gradeEventBroker) deliver(event dto.GradeEventResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for channel := range b.subscribers[event.StudentID] {
		select {
		case channel <- event:
		default:
			// Slow subscribers drop events rather than block the broadcaster.
		}
	}
}
