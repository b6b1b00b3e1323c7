// SPDX-License-Identifier: MIT

package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordsCompletedEpisode(t *testing.T) {
	j := openTestJournal(t)

	h, err := j.Start(testContext(t), "building")
	require.NoError(t, err)
	h.MarkDone()
	h.Release()

	episodes, err := j.Recent(testContext(t), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	ep := episodes[0]
	require.Equal(t, "building", ep.Operation)
	require.NotEmpty(t, ep.ID)
	require.Equal(t, "done", ep.Outcome, "Release must not downgrade a done outcome")
	require.NotNil(t, ep.EndedAt)
	require.False(t, ep.EndedAt.Before(ep.StartedAt))
}

func TestJournalRecordsAbruptRelease(t *testing.T) {
	j := openTestJournal(t)

	h, err := j.Start(testContext(t), "opening")
	require.NoError(t, err)
	h.Release()

	episodes, err := j.Recent(testContext(t), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, "released", episodes[0].Outcome)
}

func TestJournalOpenEpisodeHasNoOutcome(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.Start(testContext(t), "closing")
	require.NoError(t, err)

	episodes, err := j.Recent(testContext(t), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Empty(t, episodes[0].Outcome)
	require.Nil(t, episodes[0].EndedAt)
}

func TestJournalRecentHonorsLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < 5; i++ {
		h, err := j.Start(testContext(t), "building")
		require.NoError(t, err)
		h.MarkDone()
		h.Release()
	}

	episodes, err := j.Recent(testContext(t), 3)
	require.NoError(t, err)
	require.Len(t, episodes, 3)
}

func TestJournalHealthCheck(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.HealthCheck(testContext(t)))
}
