// workers/ranking_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"sabo-arena-service/models"
	"sabo-arena-service/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankingSyncClient polls the ranking service for changed ranking rows and
// keeps the local player_rankings mirror fresh. The mirror is what the
// acceptance transaction locks for the stake precondition, so a stale
// mirror only ever delays acceptance — it never double-spends.
type RankingSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewRankingSyncClient(db *gorm.DB) *RankingSyncClient {
	baseURL := os.Getenv("RANKING_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("RANKING_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("ARENA_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("ARENA_SERVICE_TOKEN environment variable is required for ranking sync")
	}

	return &RankingSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

func (c *RankingSyncClient) GetChangedRankings(ctx context.Context, since time.Time) ([]models.PlayerRanking, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/rankings", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ranking service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ranking service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Rankings []models.PlayerRanking `json:"rankings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode ranking service response: %w", err)
	}

	return response.Rankings, nil
}

// PollRankings persists changed rankings into the player_rankings mirror on
// a fixed interval. The since-cursor only advances on a successful upsert so
// a failed window is retried whole on the next tick.
func PollRankings(ctx context.Context, client *RankingSyncClient, pollInterval time.Duration) {
	log.Println("Starting ranking polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ranking polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			rankings, err := client.GetChangedRankings(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling rankings: %v", err)
				continue
			}

			count := len(rankings)
			if count == 0 {
				continue
			}

			// Bulk upsert in one statement (PostgreSQL OnConflict)
			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "user_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"rank_code",
						"spa_points",
						"elo_points",
						"wins",
						"losses",
						"is_verified",
						"last_verified_at",
						"created_at",
						"updated_at",
					}),
				},
			).Create(&rankings).Error; err != nil {
				log.Printf("❌ Failed to upsert %d ranking(s) into player_rankings: %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Upserted %d ranking(s) into player_rankings table.", count)
		}
	}
}

// GetRankingByUserID queries the local mirror.
func GetRankingByUserID(db *gorm.DB, externalUserID string) (models.PlayerRanking, bool, error) {
	var ranking models.PlayerRanking
	if err := db.Where("user_id = ?", externalUserID).First(&ranking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ranking, false, nil
		}
		return ranking, false, err
	}
	return ranking, true, nil
}
