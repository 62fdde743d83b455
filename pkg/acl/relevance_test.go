package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pollhub/pkg/data"
)

func TestRelevantThreshold(t *testing.T) {
	t.Run("ExpiryWins", func(t *testing.T) {
		poll := &data.Poll{Expire: 2000, LastInteraction: 1500}
		assert.Equal(t, int64(2000), RelevantThresholdNet(poll))
		assert.Equal(t, int64(2300), RelevantThreshold(poll, 300))
	})

	t.Run("LastInteractionWhenOpenEnded", func(t *testing.T) {
		poll := &data.Poll{Expire: 0, LastInteraction: 1500}
		assert.Equal(t, int64(1500), RelevantThresholdNet(poll))
	})

	t.Run("ZeroOffsetKeepsNetValue", func(t *testing.T) {
		poll := &data.Poll{Expire: 2000}
		assert.Equal(t, RelevantThresholdNet(poll), RelevantThreshold(poll, 0))
	})
}

func TestStillRelevant(t *testing.T) {
	poll := &data.Poll{Expire: 1000}

	t.Run("WithinWindow", func(t *testing.T) {
		assert.True(t, StillRelevant(poll, 500, time.Unix(1400, 0)))
		assert.True(t, StillRelevant(poll, 500, time.Unix(1500, 0)))
	})

	t.Run("PastWindow", func(t *testing.T) {
		assert.False(t, StillRelevant(poll, 500, time.Unix(1501, 0)))
	})
}
