package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

func TestNewPoll(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		poll, err := NewPoll(PollTypeDate, "Lunch", "alice", testNow)
		require.NoError(t, err)

		assert.NotEmpty(t, poll.ID)
		assert.Equal(t, AccessPrivate, poll.Access)
		assert.Equal(t, ShowResultsAlways, poll.ShowResults)
		assert.Zero(t, poll.Expire)
		assert.Zero(t, poll.Deleted)
		assert.Equal(t, testNow.Unix(), poll.Created)
		assert.Equal(t, testNow.Unix(), poll.LastInteraction)
		assert.NoError(t, poll.Validate())
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		_, err := NewPoll("ranked", "Lunch", "alice", testNow)
		assert.ErrorIs(t, err, ErrInvalidType)

		_, err = NewPoll(PollTypeDate, "", "alice", testNow)
		assert.ErrorIs(t, err, ErrEmptyTitle)

		_, err = NewPoll(PollTypeDate, "Lunch", "", testNow)
		assert.Error(t, err)
	})
}

func TestPollState(t *testing.T) {
	t.Run("Closed", func(t *testing.T) {
		poll := &Poll{Expire: testNow.Unix()}
		assert.True(t, poll.Closed(testNow))
		assert.False(t, poll.Closed(testNow.Add(-time.Second)))

		openEnded := &Poll{Expire: 0}
		assert.False(t, openEnded.Closed(testNow))
	})

	t.Run("Archived", func(t *testing.T) {
		assert.False(t, (&Poll{}).Archived())
		assert.True(t, (&Poll{Deleted: testNow.Unix()}).Archived())
	})

	t.Run("ProposalsAllowed", func(t *testing.T) {
		poll := &Poll{AllowProposals: true}
		assert.True(t, poll.ProposalsAllowed(testNow))

		poll.ProposalsExpire = testNow.Unix() - 1
		assert.False(t, poll.ProposalsAllowed(testNow))

		poll.ProposalsExpire = testNow.Unix() + 100
		assert.True(t, poll.ProposalsAllowed(testNow))

		poll.AllowProposals = false
		assert.False(t, poll.ProposalsAllowed(testNow))
	})
}

func TestNewShare(t *testing.T) {
	share, err := NewShare(ShareTypeUser, "poll-1", "bob")
	require.NoError(t, err)

	assert.NotEmpty(t, share.ID)
	assert.Len(t, share.Token, 16)
	assert.True(t, share.Active())
	assert.NoError(t, share.Validate())

	// tokens are unique across shares
	other, err := NewShare(ShareTypeUser, "poll-1", "carol")
	require.NoError(t, err)
	assert.NotEqual(t, share.Token, other.Token)

	t.Run("DeletedShareIsInactive", func(t *testing.T) {
		share.Deleted = testNow.Unix()
		assert.False(t, share.Active())
	})

	t.Run("NilShareIsInactive", func(t *testing.T) {
		var nilShare *Share
		assert.False(t, nilShare.Active())
	})

	t.Run("RejectsMissingPoll", func(t *testing.T) {
		_, err := NewShare(ShareTypeUser, "", "bob")
		assert.Error(t, err)
	})
}

func TestNewVote(t *testing.T) {
	vote, err := NewVote("poll-1", "bob", "opt-1", AnswerMaybe)
	require.NoError(t, err)
	assert.NoError(t, vote.Validate())

	_, err = NewVote("poll-1", "bob", "opt-1", "perhaps")
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = NewVote("", "bob", "opt-1", AnswerYes)
	assert.Error(t, err)
}

func TestEnumHelpers(t *testing.T) {
	assert.True(t, ValidPollType(PollTypeDate))
	assert.True(t, ValidPollType(PollTypeText))
	assert.False(t, ValidPollType("ranked"))

	assert.True(t, ValidAccess(AccessPrivate))
	assert.True(t, ValidAccess(AccessOpen))
	assert.False(t, ValidAccess("hidden"))

	assert.True(t, ValidShowResults(ShowResultsAlways))
	assert.True(t, ValidShowResults(ShowResultsClosed))
	assert.True(t, ValidShowResults(ShowResultsNever))
	assert.False(t, ValidShowResults("sometimes"))
}
