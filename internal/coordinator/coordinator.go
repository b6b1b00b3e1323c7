// SPDX-License-Identifier: MIT

// Package coordinator maps raw, possibly racy, edge-triggered activation
// events for a fixed set of named global operations into correctly paired
// start/stop notifications on a sink: no double-starts, no missed stops, no
// ordering bugs at startup.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/metrics"
	"github.com/ManuGH/opgate/internal/notify"
	"github.com/ManuGH/opgate/internal/source"
)

// ErrUnknownOperation is returned for a transition on a name that was not
// part of the construction-time configuration. Names are derived 1:1 from
// the bindings, so hitting this is a contract violation by the caller.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrDuplicateBinding is returned when two bindings share an operation name.
var ErrDuplicateBinding = errors.New("duplicate operation binding")

// Binding associates one operation name with its event source.
type Binding struct {
	Name   string
	Source source.Source
}

// Coordinator owns the registry of live notifications, one entry per
// currently-active operation name. The registry is private: consumers
// observe activity only through the sink.
type Coordinator struct {
	mu       sync.Mutex
	sink     notify.Sink
	names    map[string]struct{}
	registry map[string]notify.Handle
	subs     []source.Subscription
	inert    bool
	logger   zerolog.Logger
}

// New builds a coordinator over the given bindings.
//
// A nil sink is a deliberate opt-out, not an error: the coordinator comes up
// fully inert, creates no subscriptions, and every later call is a no-op.
//
// With a live sink, each source's current state is read synchronously and an
// activation is synthesized for already-active operations BEFORE subscribing
// to changes. Snapshot-first closes the race where an activation lands
// between construction and subscription; the opposite order could miss it.
func New(ctx context.Context, sink notify.Sink, bindings []Binding) (*Coordinator, error) {
	c := &Coordinator{
		sink:   sink,
		logger: oplog.WithComponent("coordinator"),
	}

	if sink == nil {
		c.inert = true
		c.logger.Info().Msg("no notification sink available, coordinator is inert")
		return c, nil
	}

	c.names = make(map[string]struct{}, len(bindings))
	c.registry = make(map[string]notify.Handle, len(bindings))

	for _, b := range bindings {
		if _, dup := c.names[b.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBinding, b.Name)
		}
		c.names[b.Name] = struct{}{}
	}

	for _, b := range bindings {
		if b.Source.Active() {
			if err := c.HandleTransition(ctx, b.Name, true); err != nil {
				c.Close()
				return nil, fmt.Errorf("initial activation %q: %w", b.Name, err)
			}
		}

		name := b.Name
		sub, err := b.Source.Subscribe(func(active bool) {
			if err := c.HandleTransition(context.Background(), name, active); err != nil {
				c.logger.Error().
					Err(err).
					Str("operation", name).
					Bool("active", active).
					Msg("transition failed")
			}
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("subscribe %q: %w", b.Name, err)
		}
		c.subs = append(c.subs, sub)
	}

	return c, nil
}

// HandleTransition processes one activation or deactivation signal.
//
// Step 1 closes out any registration already held for the name, whatever the
// new value is: a stale "still active" signal can never leak a previous
// registration. Step 2 opens a fresh registration when the new value is
// active. Two active signals in a row therefore produce stop-then-start, and
// an inactive signal without an open registration is a safe no-op.
func (c *Coordinator) HandleTransition(ctx context.Context, name string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inert {
		return nil
	}
	if _, ok := c.names[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}

	metrics.IncTransition(name, active)

	if handle, ok := c.registry[name]; ok {
		handle.MarkDone()
		handle.Release()
		delete(c.registry, name)
		metrics.IncStop(name, metrics.StopReasonDone)
	}

	if active {
		handle, err := c.sink.Start(ctx, name)
		if err != nil {
			return fmt.Errorf("start %q: %w", name, err)
		}
		c.registry[name] = handle
		metrics.IncStart(name)
		c.logger.Debug().Str("operation", name).Msg("operation active")
	} else {
		c.logger.Debug().Str("operation", name).Msg("operation inactive")
	}

	return nil
}

// Close tears the coordinator down: every remaining registration is released
// directly, without MarkDone, because teardown is abrupt disposal rather
// than a clean logical stop. All subscriptions are unsubscribed and the
// coordinator becomes inert. Calling Close again is a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inert {
		return
	}
	c.inert = true

	for name, handle := range c.registry {
		handle.Release()
		metrics.IncStop(name, metrics.StopReasonTeardown)
	}
	c.registry = nil

	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil

	c.logger.Info().Msg("coordinator closed")
}
