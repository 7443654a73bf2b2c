// Package events publishes borrow lifecycle events to a pluggable sink.
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types carried in the envelope.
const (
	TypeBorrowCreated   = "BORROW_CREATED"
	TypeReturnProcessed = "RETURN_PROCESSED"
	TypeDueDateChanged  = "DUE_DATE_CHANGED"
)

// Publisher emits one event per successful lifecycle transition.
type Publisher interface {
	PublishBorrowCreated(ctx context.Context, borrow *domain.Borrow) error
	PublishReturnProcessed(ctx context.Context, borrow *domain.Borrow) error
	PublishDueDateChanged(ctx context.Context, borrow *domain.Borrow) error
}

// Sink delivers an encoded event to a topic.
type Sink interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
}

type Topics struct {
	BorrowCreated   string
	ReturnProcessed string
	DueDateChanged  string
}

// Envelope is the wire format of every event.
type Envelope struct {
	EventID    string         `json:"eventId"`
	EventType  string         `json:"eventType"`
	OccurredAt time.Time      `json:"occurredAt"`
	Key        string         `json:"key"`
	Borrow     BorrowSnapshot `json:"borrow"`
}

// BorrowSnapshot is the full borrow state at the time of the event.
type BorrowSnapshot struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	BookID     int64     `json:"bookId"`
	BorrowDate time.Time `json:"borrowDate"`
	DueDate    time.Time `json:"dueDate"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func snapshotOf(b *domain.Borrow) BorrowSnapshot {
	return BorrowSnapshot{
		ID:         b.ID,
		UserID:     b.UserID,
		BookID:     b.BookID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// Emitter is the Publisher implementation.
type Emitter struct {
	sink    Sink
	topics  Topics
	timeout time.Duration
	now     func() time.Time
}

func NewEmitter(sink Sink, topics Topics, timeout time.Duration) *Emitter {
	return &Emitter{
		sink:    sink,
		topics:  topics,
		timeout: timeout,
		now:     time.Now,
	}
}

func (e *Emitter) PublishBorrowCreated(ctx context.Context, borrow *domain.Borrow) error {
	return e.publish(ctx, e.topics.BorrowCreated, TypeBorrowCreated, borrow)
}

func (e *Emitter) PublishReturnProcessed(ctx context.Context, borrow *domain.Borrow) error {
	return e.publish(ctx, e.topics.ReturnProcessed, TypeReturnProcessed, borrow)
}

func (e *Emitter) PublishDueDateChanged(ctx context.Context, borrow *domain.Borrow) error {
	return e.publish(ctx, e.topics.DueDateChanged, TypeDueDateChanged, borrow)
}

func (e *Emitter) publish(ctx context.Context, topic, eventType string, borrow *domain.Borrow) error {
	key := strconv.FormatInt(borrow.ID, 10)
	envelope := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: e.now().UTC(),
		Key:        key,
		Borrow:     snapshotOf(borrow),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrEventPublish, eventType, err)
	}

	sendCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
	}

	err = e.sink.Send(sendCtx, topic, key, payload)
	metrics.RecordEventPublished(topic, err)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "topic", topic, "event_type", eventType, "borrow_id", borrow.ID, "error", err)
		return fmt.Errorf("%w: %s to %s: %v", domain.ErrEventPublish, eventType, topic, err)
	}

	logger.DebugContext(ctx, "Event published", "topic", topic, "event_type", eventType, "event_id", envelope.EventID, "borrow_id", borrow.ID)
	return nil
}
