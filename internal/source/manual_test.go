// SPDX-License-Identifier: MIT

package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualSnapshot(t *testing.T) {
	m := NewManual(true)
	require.True(t, m.Active())

	m.Set(false)
	require.False(t, m.Active())
}

func TestManualNotifiesOnEverySet(t *testing.T) {
	m := NewManual(false)

	var got []bool
	sub, err := m.Subscribe(func(active bool) { got = append(got, active) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	m.Set(true)
	m.Set(true) // duplicate values are delivered, not coalesced
	m.Set(false)
	require.Equal(t, []bool{true, true, false}, got)
}

func TestManualUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManual(false)

	calls := 0
	sub, err := m.Subscribe(func(bool) { calls++ })
	require.NoError(t, err)

	m.Set(true)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	m.Set(false)

	require.Equal(t, 1, calls)
}

func TestStaticSource(t *testing.T) {
	require.True(t, Static(true).Active())
	require.False(t, Static(false).Active())

	sub, err := Static(true).Subscribe(func(bool) {
		t.Fatal("static source must never notify")
	})
	require.NoError(t, err)
	sub.Unsubscribe()
}
