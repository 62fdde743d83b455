package acl

import (
	"time"

	"pollhub/pkg/data"
)

// RelevantThresholdNet returns the timestamp from which a poll stops being
// current: the expiry when one is set, otherwise the last interaction.
func RelevantThresholdNet(poll *data.Poll) int64 {
	if poll.Expire != 0 {
		return poll.Expire
	}
	return poll.LastInteraction
}

// RelevantThreshold returns the net threshold shifted by the user's
// configured offset ("show polls closed within the last N days").
func RelevantThreshold(poll *data.Poll, offset int64) int64 {
	return RelevantThresholdNet(poll) + offset
}

// StillRelevant reports whether the poll is still current for listing views
// at the given time.
func StillRelevant(poll *data.Poll, offset int64, now time.Time) bool {
	return now.Unix() <= RelevantThreshold(poll, offset)
}
