package models

import (
	"time"
)

// Challenge statuses. pending/open → accepted → ongoing → completed,
// with expired and cancelled as the other terminal exits.
const (
	ChallengeStatusPending   = "pending"
	ChallengeStatusOpen      = "open"
	ChallengeStatusAccepted  = "accepted"
	ChallengeStatusOngoing   = "ongoing"
	ChallengeStatusCompleted = "completed"
	ChallengeStatusCancelled = "cancelled"
	ChallengeStatusExpired   = "expired"
)

// IsTerminalChallengeStatus reports whether a status admits no further transitions.
func IsTerminalChallengeStatus(status string) bool {
	return status == ChallengeStatusCompleted ||
		status == ChallengeStatusCancelled ||
		status == ChallengeStatusExpired
}

// Challenge is a proposed or active 1v1 billiards match, optionally staked
// with SPA points. BetPoints is fixed at creation and never mutated.
// OpponentID stays nil until an acceptance assigns it.
type Challenge struct {
	ID           string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChallengerID string  `gorm:"index;not null" json:"challenger_id"` // external user ID
	OpponentID   *string `gorm:"index" json:"opponent_id,omitempty"`  // nil until accepted

	Status string `json:"status" gorm:"type:varchar(16);default:'pending';check:status IN ('pending','open','accepted','ongoing','completed','cancelled','expired')"`

	BetPoints int64 `json:"bet_points" gorm:"default:0"` // SPA points wagered, >= 0

	// Optional match details proposed by the challenger
	Message   string `json:"message,omitempty"`
	RaceTo    int    `json:"race_to" gorm:"default:0"` // e.g. race to 7 racks, 0 = unset
	ClubName  string `json:"club_name,omitempty"`
	Handicap  string `json:"handicap,omitempty"`

	// Temporal fields driving the expiry rules
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"` // proposed match time
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`     // explicit deadline

	// Result fields, written by the completion flow only
	WinnerID       *string    `gorm:"index" json:"winner_id,omitempty"`
	ChallengerScore int       `json:"challenger_score" gorm:"default:0"`
	OpponentScore   int       `json:"opponent_score" gorm:"default:0"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	// Joined profile snapshots (mirror tables, preloaded on bulk reads)
	Challenger *ArenaUser `gorm:"foreignKey:ChallengerID;references:ExternalUserID" json:"challenger,omitempty"`
	Opponent   *ArenaUser `gorm:"foreignKey:OpponentID;references:ExternalUserID" json:"opponent,omitempty"`

	Timestamps
}

// HasOpponent reports whether an acceptance has assigned an opponent.
func (c *Challenge) HasOpponent() bool {
	return c.OpponentID != nil && *c.OpponentID != ""
}

// Involves reports whether the given external user is a party to the challenge.
func (c *Challenge) Involves(externalUserID string) bool {
	if c.ChallengerID == externalUserID {
		return true
	}
	return c.OpponentID != nil && *c.OpponentID == externalUserID
}
