package services

import (
	"errors"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"sabo-arena-service/models"
	"sabo-arena-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// queryFolder folds search input so accented display names still match.
var queryFolder = cases.Fold()

// SearchPlayers searches the local player mirror by username, handle or
// display name.
func (s *ProfileService) SearchPlayers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limitStr := c.Query("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	var players []models.ArenaUser
	db := s.DB.Model(&models.ArenaUser{}).Preload("Ranking").Limit(limit)

	if query != "" {
		searchTerm := "%" + queryFolder.String(strings.TrimSpace(query)) + "%"
		db = db.Where(
			"LOWER(username) LIKE ? OR LOWER(handle) LIKE ? OR LOWER(display_name) LIKE ?",
			searchTerm, searchTerm, searchTerm,
		)
	}

	if err := db.Find(&players).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}

	// Minimal projection — don't expose emails to other players
	type PlayerSummary struct {
		ExternalUserID string  `json:"external_user_id"`
		Username       string  `json:"username"`
		Handle         string  `json:"handle"`
		DisplayName    string  `json:"display_name"`
		AvatarURL      *string `json:"avatar_url,omitempty"`
		RankCode       string  `json:"rank_code,omitempty"`
		SpaPoints      int64   `json:"spa_points"`
	}

	res := make([]PlayerSummary, len(players))
	for i, p := range players {
		res[i] = PlayerSummary{
			ExternalUserID: p.ExternalUserID,
			Username:       p.Username,
			Handle:         p.Handle,
			DisplayName:    p.DisplayName,
			AvatarURL:      p.AvatarURL,
		}
		if p.Ranking != nil {
			res[i].RankCode = p.Ranking.RankCode
			res[i].SpaPoints = p.Ranking.SpaPoints
		}
	}

	return c.JSON(res)
}

func (s *ProfileService) GetPlayerByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var player models.ArenaUser
	err := s.DB.Preload("Ranking").
		First(&player, "external_user_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "player not found"})
		}
		log.Printf("ERROR fetching player %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(player)
}

// UploadAvatar stores the authenticated player's avatar in R2 and updates
// the local mirror. The profile service picks the new URL up on its next
// sync the same way any other profile edit propagates.
func (s *ProfileService) UploadAvatar(c *fiber.Ctx) error {
	return s.uploadProfileImage(c, "avatars", "avatar_url")
}

// UploadCoverPhoto stores the authenticated player's cover photo in R2.
func (s *ProfileService) UploadCoverPhoto(c *fiber.Ctx) error {
	return s.uploadProfileImage(c, "covers", "cover_photo_url")
}

func (s *ProfileService) uploadProfileImage(c *fiber.Ctx, prefix, column string) error {
	userID := c.Locals("user_id").(string)

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "image file is required"})
	}
	if file.Size > 10*1024*1024 { // 10MB
		return c.Status(400).JSON(fiber.Map{"error": "image too large (max 10MB)"})
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := prefix + "/" + uuid.NewString() + ext
	url, err := utils.UploadFileToR2(file, key)
	if err != nil {
		log.Printf("ERROR uploading %s for %s: %v", prefix, userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload image"})
	}

	result := s.DB.Model(&models.ArenaUser{}).
		Where("external_user_id = ?", userID).
		Update(column, url)
	if result.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save image URL"})
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "player profile not synced yet"})
	}

	return c.JSON(fiber.Map{"url": url})
}
