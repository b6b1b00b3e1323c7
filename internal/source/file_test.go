// SPDX-License-Identifier: MIT

package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for state %v", want)
	}
}

func TestFileSourceSnapshot(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "building.lock")

	f, err := NewFile(marker)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.False(t, f.Active())

	require.NoError(t, os.WriteFile(marker, nil, 0o600))
	require.True(t, f.Active())
}

func TestFileSourceNotifiesOnMarkerFlip(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "building.lock")

	f, err := NewFile(marker)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ch := make(chan bool, 8)
	sub, err := f.Subscribe(func(active bool) { ch <- active })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, os.WriteFile(marker, nil, 0o600))
	waitForState(t, ch, true)

	require.NoError(t, os.Remove(marker))
	waitForState(t, ch, false)
}

func TestFileSourceIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "building.lock")

	f, err := NewFile(marker)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ch := make(chan bool, 8)
	sub, err := f.Subscribe(func(active bool) { ch <- active })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.lock"), nil, 0o600))

	select {
	case got := <-ch:
		t.Fatalf("unexpected notification: %v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileSourceCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "m.lock"))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestFileSourceRequiresExistingDir(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "missing", "m.lock"))
	require.Error(t, err)
}
