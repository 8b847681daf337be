// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sabo-arena-service/models"
	"sabo-arena-service/utils"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredPlayerFromProfile matches the JSON response from the profile sync service.
type MirroredPlayerFromProfile struct {
	ID            string     `json:"id"`
	ExternalID    string     `json:"external_id"`
	Username      string     `json:"username"`
	DisplayName   string     `json:"display_name"`
	Email         string     `json:"email"`
	Bio           *string    `json:"bio,omitempty"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	CoverPhotoURL *string    `json:"cover_photo_url,omitempty"`
	ClubName      *string    `json:"club_name,omitempty"`
	AccountStatus string     `json:"account_status"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// GetPlayerChangesResponse is the top-level structure of the sync service response.
type GetPlayerChangesResponse struct {
	Players []MirroredPlayerFromProfile `json:"players"`
}

type ArenaUserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

var displayNameCaser = cases.Title(language.Und)

// NewArenaUserSyncWorker requires the sync service URL and our own service token.
func NewArenaUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ArenaUserSyncWorker {
	return &ArenaUserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ArenaUserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Arena User Sync Worker (profile service → arena_users)…")
	go w.run(ctx)
}

func (w *ArenaUserSyncWorker) run(ctx context.Context) {
	// Initial sync (backfill if needed) - sync from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lastSyncTime := w.getLastSyncTime()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Arena User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt from the local arena_users table.
func (w *ArenaUserSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM arena_users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches player changes from the profile sync service and updates
// the local arena_users mirror.
func (w *ArenaUserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetPlayerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}

	if len(response.Players) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📥 Processing %d player(s) from profile service…", len(response.Players))

	var upsertCount, errorCount int
	for _, remote := range response.Players {
		displayName := displayNameCaser.String(strings.TrimSpace(remote.DisplayName))
		if displayName == "" {
			displayName = remote.Username
		}

		localUser := models.ArenaUser{
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			Handle:         w.uniqueHandle(displayName, remote.Username, remote.ExternalID),
			DisplayName:    displayName,
			Email:          remote.Email,
			AvatarURL:      remote.AvatarURL,
			CoverPhotoURL:  remote.CoverPhotoURL,
			Bio:            remote.Bio,
			ClubName:       remote.ClubName,
			LastSeen:       remote.LastSeen,
			CreatedAt:      remote.CreatedAt,
			UpdatedAt:      remote.UpdatedAt,
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "email", "avatar_url", "cover_photo_url",
				"bio", "club_name", "last_seen", "created_at", "updated_at",
			}),
		}).Create(&localUser).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert arena_user (external_id=%q, username=%q): %v",
				remote.ExternalID, remote.Username, err)
		} else {
			upsertCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d player(s) (%d upserted, %d errors)", len(response.Players), upsertCount, errorCount)
	return nil
}

// uniqueHandle derives a URL-safe handle from the display name, falling back
// to a transliterated username for names slug can't digest, and suffixes with
// part of the external id when another player already owns the handle.
func (w *ArenaUserSyncWorker) uniqueHandle(displayName, username, externalID string) string {
	base := slug.Make(displayName)
	if base == "" {
		base = slug.Make(unidecode.Unidecode(username))
	}
	if base == "" {
		base = "player"
	}

	var count int64
	w.db.Model(&models.ArenaUser{}).
		Where("handle = ? AND external_user_id <> ?", base, externalID).
		Count(&count)
	if count == 0 {
		return base
	}

	suffix := externalID
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return base + "-" + strings.ToLower(suffix)
}
