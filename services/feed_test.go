package services

import (
	"testing"
	"time"

	"sabo-arena-service/models"
)

func TestBuildChallengeFeeds(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	viewer := "u1"

	challenges := []models.Challenge{
		// Someone else's open challenge → community_open for the viewer.
		{ID: "open-theirs", ChallengerID: "u2", Status: models.ChallengeStatusOpen,
			Timestamps: models.Timestamps{CreatedAt: now.Add(-time.Hour)}},
		// Viewer's own open challenge → mine_pending, not community_open.
		{ID: "open-mine", ChallengerID: "u1", Status: models.ChallengeStatusPending,
			Timestamps: models.Timestamps{CreatedAt: now.Add(-time.Hour)}},
		// Accepted between two strangers, scheduled time just passed → community_live.
		{ID: "live", ChallengerID: "u2", OpponentID: strPtr("u3"), Status: models.ChallengeStatusAccepted,
			ScheduledTime: timePtr(now.Add(-10 * time.Minute))},
		// Accepted with the viewer, scheduled in the future → both upcoming tabs.
		{ID: "upcoming-mine", ChallengerID: "u1", OpponentID: strPtr("u2"), Status: models.ChallengeStatusAccepted,
			ScheduledTime: timePtr(now.Add(2 * time.Hour))},
		// Accepted with no scheduled time counts as upcoming, never live.
		{ID: "upcoming-unscheduled", ChallengerID: "u3", OpponentID: strPtr("u4"), Status: models.ChallengeStatusAccepted},
		// Finished match involving the viewer → both completed tabs.
		{ID: "done-mine", ChallengerID: "u2", OpponentID: strPtr("u1"), Status: models.ChallengeStatusCompleted},
		// Finished match between strangers → community_completed only.
		{ID: "done-theirs", ChallengerID: "u3", OpponentID: strPtr("u4"), Status: models.ChallengeStatusCompleted},
		// Stale pending challenge past the 48h window → filtered out everywhere.
		{ID: "stale", ChallengerID: "u2", Status: models.ChallengeStatusPending,
			Timestamps: models.Timestamps{CreatedAt: now.Add(-49 * time.Hour)}},
		// Ongoing match with the viewer, scheduled time in the past → live + mine_upcoming.
		{ID: "ongoing-mine", ChallengerID: "u1", OpponentID: strPtr("u5"), Status: models.ChallengeStatusOngoing,
			ScheduledTime: timePtr(now.Add(-5 * time.Minute))},
	}

	feeds := BuildChallengeFeeds(challenges, viewer, now)

	assertIDs := func(name string, got []models.Challenge, want ...string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s: got %d challenges, want %d (%v)", name, len(got), len(want), want)
		}
		for i := range want {
			if got[i].ID != want[i] {
				t.Fatalf("%s[%d] = %q, want %q", name, i, got[i].ID, want[i])
			}
		}
	}

	assertIDs("community_open", feeds.CommunityOpen, "open-theirs")
	assertIDs("community_live", feeds.CommunityLive, "live", "ongoing-mine")
	assertIDs("community_upcoming", feeds.CommunityUpcoming, "upcoming-mine", "upcoming-unscheduled")
	assertIDs("community_completed", feeds.CommunityCompleted, "done-mine", "done-theirs")
	assertIDs("mine_pending", feeds.MinePending, "open-mine")
	assertIDs("mine_upcoming", feeds.MineUpcoming, "upcoming-mine", "ongoing-mine")
	assertIDs("mine_completed", feeds.MineCompleted, "done-mine")
}

func TestBuildChallengeFeedsMineTabsAreDisjoint(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	viewer := "u1"

	// One challenge per lifecycle stage, all involving the viewer.
	challenges := []models.Challenge{
		{ID: "p", ChallengerID: "u1", Status: models.ChallengeStatusPending,
			Timestamps: models.Timestamps{CreatedAt: now}},
		{ID: "a", ChallengerID: "u1", OpponentID: strPtr("u2"), Status: models.ChallengeStatusAccepted,
			ScheduledTime: timePtr(now.Add(time.Hour))},
		{ID: "c", ChallengerID: "u1", OpponentID: strPtr("u2"), Status: models.ChallengeStatusCompleted},
	}

	feeds := BuildChallengeFeeds(challenges, viewer, now)

	seen := map[string]string{}
	record := func(tab string, list []models.Challenge) {
		t.Helper()
		for _, c := range list {
			if prev, ok := seen[c.ID]; ok {
				t.Fatalf("challenge %q appears in both %s and %s", c.ID, prev, tab)
			}
			seen[c.ID] = tab
		}
	}
	record("mine_pending", feeds.MinePending)
	record("mine_upcoming", feeds.MineUpcoming)
	record("mine_completed", feeds.MineCompleted)

	if len(seen) != 3 {
		t.Fatalf("expected each of the 3 challenges in exactly one mine tab, got %v", seen)
	}
}

func TestBuildChallengeFeedsEmptyInput(t *testing.T) {
	feeds := BuildChallengeFeeds(nil, "u1", time.Now())

	// Views must marshal as [] rather than null, so they are non-nil slices.
	for name, view := range map[string][]models.Challenge{
		"community_open":      feeds.CommunityOpen,
		"community_live":      feeds.CommunityLive,
		"community_upcoming":  feeds.CommunityUpcoming,
		"community_completed": feeds.CommunityCompleted,
		"mine_pending":        feeds.MinePending,
		"mine_upcoming":       feeds.MineUpcoming,
		"mine_completed":      feeds.MineCompleted,
	} {
		if view == nil {
			t.Fatalf("%s is nil, want empty slice", name)
		}
		if len(view) != 0 {
			t.Fatalf("%s has %d entries, want 0", name, len(view))
		}
	}
}
