// SPDX-License-Identifier: MIT

// Package notify defines the notification sink consumed by the coordinator
// and the sink implementations shipped with opgate.
package notify

import "context"

// Handle represents one open "operation started" notification.
// MarkDone and Release are each safe to call at most once; Release without a
// prior MarkDone closes the handle without implying normal completion.
type Handle interface {
	MarkDone()
	Release()
}

// Sink receives paired start/stop notifications for named operations.
type Sink interface {
	Start(ctx context.Context, operation string) (Handle, error)
}
