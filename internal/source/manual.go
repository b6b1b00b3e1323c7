// SPDX-License-Identifier: MIT

package source

import "sync"

// Manual is a source whose state is set programmatically, typically through
// the control API. Every Set delivers a notification, including repeated
// values, mirroring the racy edge-triggered sources it stands in for.
type Manual struct {
	mu     sync.Mutex
	active bool
	subs   map[int]func(bool)
	nextID int
}

// NewManual creates a manual source with the given initial state.
func NewManual(active bool) *Manual {
	return &Manual{active: active, subs: make(map[int]func(bool))}
}

func (m *Manual) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manual) Subscribe(fn func(active bool)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return &manualSub{source: m, id: id}, nil
}

// Set updates the state and notifies all subscribers synchronously.
func (m *Manual) Set(active bool) {
	m.mu.Lock()
	m.active = active
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(active)
	}
}

type manualSub struct {
	source *Manual
	id     int
	once   sync.Once
}

func (s *manualSub) Unsubscribe() {
	s.once.Do(func() {
		s.source.mu.Lock()
		delete(s.source.subs, s.id)
		s.source.mu.Unlock()
	})
}

var _ Source = (*Manual)(nil)
