// models/ranking.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerRanking mirrors per-player ranking data from the ranking service.
// The SPA points balance here is the authoritative stake check source for
// challenge acceptance — the accept transaction locks this row.
// Table name: player_rankings
type PlayerRanking struct {
	ID             string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"` // External user ID, primary lookup key
	RankCode       string    `gorm:"type:varchar(8);not null" json:"rank_code"`     // K, I, H, G, F, E per SABO ladder
	SpaPoints      int64     `gorm:"not null;default:0" json:"spa_points"`
	EloPoints      int64     `gorm:"not null;default:1000" json:"elo_points"`
	Wins           int64     `gorm:"not null;default:0" json:"wins"`
	Losses         int64     `gorm:"not null;default:0" json:"losses"`
	IsVerified     bool      `gorm:"not null" json:"is_verified"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
