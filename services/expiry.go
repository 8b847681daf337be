// services/expiry.go
package services

import (
	"time"

	"sabo-arena-service/models"
)

// Grace windows for the expiry rules. These are product constants — do not
// round them.
const (
	// PendingGraceWindow is how long a pending challenge with neither an
	// explicit deadline nor a scheduled time stays alive after creation.
	PendingGraceWindow = 48 * time.Hour

	// OpenGracePeriod is the slack past scheduled_time for an open challenge
	// that never found an opponent.
	OpenGracePeriod = 15 * time.Minute

	// AcceptedGracePeriod is the slack past scheduled_time for an accepted
	// challenge where nobody showed up to start the match.
	AcceptedGracePeriod = 30 * time.Minute
)

// IsChallengeExpired decides whether a challenge should transition to
// 'expired' at the given wall-clock time. Terminal statuses are absorbing
// and always return false; the remaining rules are mutually exclusive by
// status value.
func IsChallengeExpired(c *models.Challenge, now time.Time) bool {
	if models.IsTerminalChallengeStatus(c.Status) {
		return false
	}

	switch c.Status {
	case models.ChallengeStatusPending:
		if c.HasOpponent() {
			return false
		}
		if c.ExpiresAt != nil {
			return now.After(*c.ExpiresAt)
		}
		if c.ScheduledTime != nil {
			return now.After(*c.ScheduledTime)
		}
		return now.After(c.CreatedAt.Add(PendingGraceWindow))

	case models.ChallengeStatusOpen:
		if c.HasOpponent() || c.ScheduledTime == nil {
			return false
		}
		return now.After(c.ScheduledTime.Add(OpenGracePeriod))

	case models.ChallengeStatusAccepted:
		if !c.HasOpponent() || c.ScheduledTime == nil {
			return false
		}
		return now.After(c.ScheduledTime.Add(AcceptedGracePeriod))
	}

	// ongoing matches are left to the completion flow
	return false
}

// ExpiredChallengeIDs applies the classifier over a snapshot and returns the
// ids needing the expired transition, preserving snapshot order.
func ExpiredChallengeIDs(challenges []models.Challenge, now time.Time) []string {
	var ids []string
	for i := range challenges {
		if IsChallengeExpired(&challenges[i], now) {
			ids = append(ids, challenges[i].ID)
		}
	}
	return ids
}

// CanStillExpire reports whether a challenge could ever be classified
// expired at some future time. The sweeper uses this to skip idle cycles.
func CanStillExpire(c *models.Challenge) bool {
	if models.IsTerminalChallengeStatus(c.Status) {
		return false
	}
	switch c.Status {
	case models.ChallengeStatusPending:
		return !c.HasOpponent()
	case models.ChallengeStatusOpen:
		return !c.HasOpponent() && c.ScheduledTime != nil
	case models.ChallengeStatusAccepted:
		return c.HasOpponent() && c.ScheduledTime != nil
	}
	return false
}
