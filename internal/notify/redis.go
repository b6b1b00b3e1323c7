// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	oplog "github.com/ManuGH/opgate/internal/log"
)

// RedisConfig holds Redis connection configuration for the pub/sub sink.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Channel  string // pub/sub channel for lifecycle events
}

// Event is the JSON payload published for every lifecycle change.
type Event struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Event     string    `json:"event"` // "started", "done" or "released"
	Timestamp time.Time `json:"timestamp"`
}

// RedisSink publishes operation lifecycle events to a Redis pub/sub channel
// so out-of-process consumers can suspend background work while operations run.
type RedisSink struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "opgate:events"
	}

	logger := oplog.WithComponent("redis-sink")
	logger.Info().
		Str("addr", cfg.Addr).
		Str("channel", channel).
		Msg("connected to Redis")

	return &RedisSink{client: client, channel: channel, logger: logger}, nil
}

func (s *RedisSink) Start(ctx context.Context, operation string) (Handle, error) {
	id := uuid.NewString()
	if err := s.publish(ctx, Event{ID: id, Operation: operation, Event: "started", Timestamp: time.Now()}); err != nil {
		return nil, err
	}
	return &redisHandle{sink: s, operation: operation, id: id}, nil
}

func (s *RedisSink) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event for %q: %w", ev.Event, ev.Operation, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// HealthCheck checks if Redis is reachable.
func (s *RedisSink) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisHandle struct {
	sink      *RedisSink
	operation string
	id        string

	doneOnce    sync.Once
	releaseOnce sync.Once
}

func (h *redisHandle) MarkDone() {
	h.doneOnce.Do(func() { h.emit("done") })
}

func (h *redisHandle) Release() {
	h.releaseOnce.Do(func() { h.emit("released") })
}

// emit is best-effort: publish failures on close-out are logged, not
// propagated, so a flaky broker cannot wedge teardown.
func (h *redisHandle) emit(event string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ev := Event{ID: h.id, Operation: h.operation, Event: event, Timestamp: time.Now()}
	if err := h.sink.publish(ctx, ev); err != nil {
		h.sink.logger.Warn().
			Err(err).
			Str("operation", h.operation).
			Str("handle", h.id).
			Str("lifecycle", event).
			Msg("failed to publish lifecycle event")
	}
}

var _ Sink = (*RedisSink)(nil)
