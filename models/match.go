package models

import "time"

// Match records the scheduled table session backing an accepted challenge.
// Created inside the acceptance transaction; closed by the completion flow.
type Match struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChallengeID  string `gorm:"uniqueIndex;not null" json:"challenge_id"`
	ChallengerID string `gorm:"index;not null" json:"challenger_id"`
	OpponentID   string `gorm:"index;not null" json:"opponent_id"`

	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	BetPoints     int64      `json:"bet_points" gorm:"default:0"`
	RaceTo        int        `json:"race_to" gorm:"default:0"`

	// Outcome
	Status          string     `json:"status" gorm:"type:varchar(16);default:'scheduled';check:status IN ('scheduled','ongoing','finished','abandoned')"`
	WinnerID        *string    `gorm:"index" json:"winner_id,omitempty"`
	ChallengerScore int        `json:"challenger_score" gorm:"default:0"`
	OpponentScore   int        `json:"opponent_score" gorm:"default:0"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`

	Timestamps
}
