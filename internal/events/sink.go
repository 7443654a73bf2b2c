package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"borrow-service/internal/config"
	"borrow-service/internal/logger"
)

// StreamAdder is the subset of the go-redis client used by RedisStreamSink.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends each event to a Redis stream named after its topic.
type RedisStreamSink struct {
	client StreamAdder
}

func NewRedisStreamSink(client StreamAdder) *RedisStreamSink {
	return &RedisStreamSink{client: client}
}

func (s *RedisStreamSink) Send(ctx context.Context, topic, key string, payload []byte) error {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	logger.DebugContext(ctx, "Event appended to stream", "stream", topic, "entry_id", id, "key", key)
	return nil
}

// LogSink writes events to the application log.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, topic, key string, payload []byte) error {
	logger.InfoContext(ctx, "Event", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

// NewSink builds the sink selected by events.sink. The returned close function
// releases any connection the sink holds.
func NewSink(ctx context.Context, cfg config.EventsConfig) (Sink, func() error, error) {
	switch cfg.Sink {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Redis event sink connected", "addr", cfg.Redis.Addr)
		return NewRedisStreamSink(client), client.Close, nil
	case "log", "":
		return LogSink{}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown event sink: %q", cfg.Sink)
	}
}

// TopicsFromConfig maps configured topic names.
func TopicsFromConfig(cfg config.TopicsConfig) Topics {
	return Topics{
		BorrowCreated:   cfg.BorrowCreated,
		ReturnProcessed: cfg.ReturnProcessed,
		DueDateChanged:  cfg.DueDateChanged,
	}
}
