// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	oplog "github.com/ManuGH/opgate/internal/log"
)

// LogSink writes structured lifecycle events for every notification.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs operation lifecycle events.
func NewLogSink() *LogSink {
	return &LogSink{logger: oplog.WithComponent("notify")}
}

func (s *LogSink) Start(_ context.Context, operation string) (Handle, error) {
	id := uuid.NewString()
	s.logger.Info().
		Str("event", "operation.started").
		Str("operation", operation).
		Str("handle", id).
		Msg("operation started")

	return &logHandle{sink: s, operation: operation, id: id, startedAt: time.Now()}, nil
}

type logHandle struct {
	sink      *LogSink
	operation string
	id        string
	startedAt time.Time

	doneOnce    sync.Once
	releaseOnce sync.Once
}

func (h *logHandle) MarkDone() {
	h.doneOnce.Do(func() {
		h.sink.logger.Info().
			Str("event", "operation.done").
			Str("operation", h.operation).
			Str("handle", h.id).
			Dur("duration", time.Since(h.startedAt)).
			Msg("operation completed")
	})
}

func (h *logHandle) Release() {
	h.releaseOnce.Do(func() {
		h.sink.logger.Debug().
			Str("event", "operation.released").
			Str("operation", h.operation).
			Str("handle", h.id).
			Msg("operation handle released")
	})
}

var _ Sink = (*LogSink)(nil)
