// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/metrics"
)

// Snapshot is a point-in-time view of the aggregate activity signal.
type Snapshot struct {
	Busy      bool      `json:"busy"`
	Active    []string  `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker is an in-process sink that maintains the aggregate "at least one
// tracked operation is running" signal. Consumers read it through AnyActive,
// Snapshot, or a registered listener channel; they never see the
// coordinator's registry directly.
type Tracker struct {
	mu   sync.RWMutex
	open map[string]int

	listenerMu sync.RWMutex
	listeners  []chan<- Snapshot
}

// NewTracker creates an empty activity tracker.
func NewTracker() *Tracker {
	return &Tracker{open: make(map[string]int)}
}

func (t *Tracker) Start(_ context.Context, operation string) (Handle, error) {
	t.mu.Lock()
	t.open[operation]++
	t.mu.Unlock()
	t.changed()

	return &trackerHandle{tracker: t, operation: operation}, nil
}

// AnyActive reports whether at least one tracked operation is running.
func (t *Tracker) AnyActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.open) > 0
}

// ActiveNames returns the sorted names of currently active operations.
func (t *Tracker) ActiveNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.open))
	for name := range t.open {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current aggregate state.
func (t *Tracker) Snapshot() Snapshot {
	names := t.ActiveNames()
	return Snapshot{
		Busy:      len(names) > 0,
		Active:    names,
		Timestamp: time.Now(),
	}
}

// RegisterListener registers a channel that receives a snapshot after every
// state change. Sends are non-blocking; a full channel is skipped.
func (t *Tracker) RegisterListener(ch chan<- Snapshot) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	t.listeners = append(t.listeners, ch)
}

func (t *Tracker) changed() {
	snap := t.Snapshot()
	metrics.SetActive(len(snap.Active))

	t.listenerMu.RLock()
	defer t.listenerMu.RUnlock()
	for _, ch := range t.listeners {
		select {
		case ch <- snap:
		default:
			l := oplog.WithComponent("tracker")
			l.Warn().
				Str("event", "tracker.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (t *Tracker) release(operation string) {
	t.mu.Lock()
	if n := t.open[operation]; n <= 1 {
		delete(t.open, operation)
	} else {
		t.open[operation] = n - 1
	}
	t.mu.Unlock()
	t.changed()
}

type trackerHandle struct {
	tracker   *Tracker
	operation string
	once      sync.Once
}

// MarkDone is a no-op for the tracker; only the handle lifetime matters.
func (h *trackerHandle) MarkDone() {}

func (h *trackerHandle) Release() {
	h.once.Do(func() {
		h.tracker.release(h.operation)
	})
}

var _ Sink = (*Tracker)(nil)
