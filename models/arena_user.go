package models

import (
	"time"

	"gorm.io/gorm"
)

// ArenaUser is a local snapshot of player data needed for challenges.
// Owned and managed solely by the challenge service.
// Populated via sync worker from the Profile Service's user table.
type ArenaUser struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username       string `gorm:"index;not null" json:"username"`
	Handle         string `gorm:"uniqueIndex" json:"handle"` // URL-safe handle derived from the display name
	DisplayName    string `json:"display_name"`
	Email          string `json:"email,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	CoverPhotoURL  *string `json:"cover_photo_url,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	ClubName       *string `json:"club_name,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"` // local arena ban

	// Ranking mirror joined on reads (points balance lives there)
	Ranking *PlayerRanking `gorm:"foreignKey:UserID;references:ExternalUserID" json:"ranking,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
