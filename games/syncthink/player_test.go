package syncthink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRosterJoin(t *testing.T) {
	var r Roster

	a, existing, err := r.join("a", "Alice", epoch)
	require.NoError(t, err)
	assert.False(t, existing)
	assert.True(t, a.Admin)
	assert.True(t, a.Connected)
	assert.Zero(t, a.Score)

	b, _, err := r.join("b", "", epoch)
	require.NoError(t, err)
	assert.False(t, b.Admin)
	assert.Equal(t, "Player2", b.Username)

	_, _, err = r.join("c", "Carol", epoch)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, r.Len())
}

func TestRosterReconnectClearsDisconnect(t *testing.T) {
	var r Roster

	_, _, err := r.join("a", "Alice", epoch)
	require.NoError(t, err)
	_, _, err = r.join("b", "Bob", epoch)
	require.NoError(t, err)

	require.NoError(t, r.markDisconnected("a", epoch.Add(time.Minute)))
	a := r.get("a")
	assert.False(t, a.Connected)
	assert.Equal(t, epoch.Add(time.Minute), a.DisconnectedAt)

	// a full room still lets members back in
	a, existing, err := r.join("a", "", epoch.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, existing)
	assert.True(t, a.Connected)
	assert.True(t, a.DisconnectedAt.IsZero())
	assert.Equal(t, "Alice", a.Username)
	assert.True(t, a.Admin)
}

func TestRosterRegisterStartsDisconnected(t *testing.T) {
	var r Roster

	p, err := r.register("a", "Alice")
	require.NoError(t, err)
	assert.False(t, p.Connected)
	assert.True(t, p.Admin)
	assert.Zero(t, r.connectedCount())
}

func TestRosterRecordAnswerLastWriteWins(t *testing.T) {
	var r Roster
	_, _, _ = r.join("a", "Alice", epoch)

	require.NoError(t, r.recordAnswer("a", "first", 20))
	require.NoError(t, r.recordAnswer("a", "second", 10))

	sub := r.get("a").Submission
	assert.Equal(t, "second", sub.Answer)
	assert.True(t, sub.Submitted)
	assert.Equal(t, 10, sub.TimeLeft)

	assert.ErrorIs(t, r.recordAnswer("ghost", "x", 0), ErrPlayerNotRecognized)
	assert.ErrorIs(t, r.markDisconnected("ghost", epoch), ErrPlayerNotRecognized)
}

func TestRosterAllSubmittedIgnoresDisconnected(t *testing.T) {
	var r Roster
	_, _, _ = r.join("a", "Alice", epoch)
	_, _, _ = r.join("b", "Bob", epoch)

	require.NoError(t, r.recordAnswer("a", "cat", 0))
	assert.False(t, r.allSubmitted())

	require.NoError(t, r.markDisconnected("b", epoch))
	assert.True(t, r.allSubmitted())
}

func TestRosterDisconnectKeepsSubmission(t *testing.T) {
	var r Roster
	_, _, _ = r.join("a", "Alice", epoch)

	require.NoError(t, r.recordAnswer("a", "cat", 0))
	require.NoError(t, r.markDisconnected("a", epoch))

	assert.Equal(t, "cat", r.get("a").Submission.Answer)
	assert.True(t, r.get("a").Submission.Submitted)
}

func TestRosterMarkMissedOnlyTouchesSilentConnectedPlayers(t *testing.T) {
	var r Roster
	_, _, _ = r.join("a", "Alice", epoch)
	_, _, _ = r.join("b", "Bob", epoch)

	require.NoError(t, r.recordAnswer("a", "cat", 0))
	r.markMissed()

	assert.False(t, r.get("a").Submission.Missed)
	assert.True(t, r.get("b").Submission.Missed)
	assert.Empty(t, r.get("b").Submission.Answer)

	r.resetSubmissions()
	assert.Equal(t, Submission{}, r.get("a").Submission)
	assert.Equal(t, Submission{}, r.get("b").Submission)
}

func TestRosterRankedKeepsJoinOrderOnTies(t *testing.T) {
	var r Roster
	_, _, _ = r.join("a", "Alice", epoch)
	_, _, _ = r.join("b", "Bob", epoch)

	ranked := r.ranked()
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, "b", ranked[1].ID)

	r.get("b").Score = 10
	ranked = r.ranked()
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID)
}
