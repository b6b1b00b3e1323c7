// SPDX-License-Identifier: MIT

package source

// Static is a source with a fixed state that never changes.
type Static bool

func (s Static) Active() bool {
	return bool(s)
}

func (s Static) Subscribe(func(active bool)) (Subscription, error) {
	return noopSub{}, nil
}

type noopSub struct{}

func (noopSub) Unsubscribe() {}

var _ Source = Static(false)
