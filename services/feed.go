// services/feed.go
package services

import (
	"time"

	"sabo-arena-service/models"
)

// ChallengeFeeds holds the seven disjoint views the clients render as tabs.
// Every view is a pure predicate over the same base snapshot — none of them
// fetch or cache independently, so they can never drift from the base set.
type ChallengeFeeds struct {
	CommunityOpen      []models.Challenge `json:"community_open"`
	CommunityLive      []models.Challenge `json:"community_live"`
	CommunityUpcoming  []models.Challenge `json:"community_upcoming"`
	CommunityCompleted []models.Challenge `json:"community_completed"`
	MinePending        []models.Challenge `json:"mine_pending"`
	MineUpcoming       []models.Challenge `json:"mine_upcoming"`
	MineCompleted      []models.Challenge `json:"mine_completed"`
}

// BuildChallengeFeeds derives all views from the base collection for one
// viewer. Recomputed on every call; the base snapshot ordering (created_at
// desc from the bulk read) carries through to each view.
func BuildChallengeFeeds(challenges []models.Challenge, viewerID string, now time.Time) ChallengeFeeds {
	feeds := ChallengeFeeds{
		CommunityOpen:      []models.Challenge{},
		CommunityLive:      []models.Challenge{},
		CommunityUpcoming:  []models.Challenge{},
		CommunityCompleted: []models.Challenge{},
		MinePending:        []models.Challenge{},
		MineUpcoming:       []models.Challenge{},
		MineCompleted:      []models.Challenge{},
	}

	for i := range challenges {
		c := &challenges[i]
		expired := IsChallengeExpired(c, now)

		awaitingOpponent := !c.HasOpponent() &&
			(c.Status == models.ChallengeStatusPending || c.Status == models.ChallengeStatusOpen)
		active := c.HasOpponent() &&
			(c.Status == models.ChallengeStatusAccepted || c.Status == models.ChallengeStatusOngoing)

		// Community tabs
		if awaitingOpponent && c.ChallengerID != viewerID && !expired {
			feeds.CommunityOpen = append(feeds.CommunityOpen, *c)
		}
		if active && !expired && c.ScheduledTime != nil && !c.ScheduledTime.After(now) {
			feeds.CommunityLive = append(feeds.CommunityLive, *c)
		}
		if c.HasOpponent() && c.Status == models.ChallengeStatusAccepted && !expired &&
			(c.ScheduledTime == nil || c.ScheduledTime.After(now)) {
			feeds.CommunityUpcoming = append(feeds.CommunityUpcoming, *c)
		}
		if c.Status == models.ChallengeStatusCompleted {
			feeds.CommunityCompleted = append(feeds.CommunityCompleted, *c)
		}

		// Mine tabs
		if awaitingOpponent && c.ChallengerID == viewerID && !expired {
			feeds.MinePending = append(feeds.MinePending, *c)
		}
		if active && c.Involves(viewerID) && !expired {
			feeds.MineUpcoming = append(feeds.MineUpcoming, *c)
		}
		if c.Status == models.ChallengeStatusCompleted && c.Involves(viewerID) {
			feeds.MineCompleted = append(feeds.MineCompleted, *c)
		}
	}

	return feeds
}
