// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"fmt"
)

// Fanout composes several sinks into one. Start opens a handle on every
// child; the returned handle fans MarkDone and Release out to all of them.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a composite sink. Nil children are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Start(ctx context.Context, operation string) (Handle, error) {
	handles := make([]Handle, 0, len(f.sinks))
	for _, s := range f.sinks {
		h, err := s.Start(ctx, operation)
		if err != nil {
			// Roll back handles already opened on other children.
			for _, opened := range handles {
				opened.Release()
			}
			return nil, fmt.Errorf("fanout start %q: %w", operation, err)
		}
		handles = append(handles, h)
	}
	return fanoutHandle(handles), nil
}

type fanoutHandle []Handle

func (h fanoutHandle) MarkDone() {
	for _, child := range h {
		child.MarkDone()
	}
}

func (h fanoutHandle) Release() {
	for _, child := range h {
		child.Release()
	}
}

var _ Sink = (*Fanout)(nil)
