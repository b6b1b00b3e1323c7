// SPDX-License-Identifier: MIT

// Package source defines the boolean-state event sources that drive the
// operation coordinator, and the implementations shipped with opgate.
package source

// Subscription is one active binding to a source's change notifications.
// Unsubscribe is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// Source is an external boolean-state provider: a synchronous snapshot plus
// change notifications. Callbacks are invoked with the new state; a source
// may deliver duplicate values, the consumer must tolerate them.
type Source interface {
	Active() bool
	Subscribe(fn func(active bool)) (Subscription, error)
}
