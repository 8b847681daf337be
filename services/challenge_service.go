package services

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"time"

	"sabo-arena-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type ChallengeService struct {
	DB       *gorm.DB
	Hub      *ChallengeHub
	Backend  ChallengeBackend
	Notifier *ChangeNotifier
	Clock    clockwork.Clock

	// OnAccepted runs after a successful acceptance, outside the DB
	// transaction (e.g. push notification fan-out).
	OnAccepted func(res *AcceptResult)
}

func NewChallengeService(db *gorm.DB, hub *ChallengeHub, backend ChallengeBackend, notifier *ChangeNotifier, clock clockwork.Clock) *ChallengeService {
	return &ChallengeService{DB: db, Hub: hub, Backend: backend, Notifier: notifier, Clock: clock}
}

// CreateChallenge creates a new challenge owned by the authenticated user.
// Validation is fully local — nothing reaches the DB on a malformed request.
func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	type Req struct {
		Kind          string     `json:"kind"` // "direct" (default) or "open"
		BetPoints     int64      `json:"bet_points"`
		Message       string     `json:"message"`
		RaceTo        int        `json:"race_to"`
		ClubName      string     `json:"club_name"`
		Handicap      string     `json:"handicap"`
		ScheduledTime *time.Time `json:"scheduled_time,omitempty"` // RFC3339
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`     // RFC3339
	}

	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	status := models.ChallengeStatusPending
	switch req.Kind {
	case "", "direct":
		// keep pending
	case "open":
		status = models.ChallengeStatusOpen
	default:
		return c.Status(400).JSON(fiber.Map{"error": "kind must be 'direct' or 'open'"})
	}

	if req.BetPoints < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "bet_points must be non-negative"})
	}
	if req.RaceTo < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "race_to must be non-negative"})
	}

	now := s.Clock.Now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return c.Status(400).JSON(fiber.Map{"error": "expires_at must be in the future"})
	}
	if req.ScheduledTime != nil && !req.ScheduledTime.After(now) {
		return c.Status(400).JSON(fiber.Map{"error": "scheduled_time must be in the future"})
	}

	challenge := &models.Challenge{
		ID:            uuid.NewString(),
		ChallengerID:  userID,
		Status:        status,
		BetPoints:     req.BetPoints,
		Message:       req.Message,
		RaceTo:        req.RaceTo,
		ClubName:      req.ClubName,
		Handicap:      req.Handicap,
		ScheduledTime: req.ScheduledTime,
		ExpiresAt:     req.ExpiresAt,
	}

	if err := s.DB.Create(challenge).Error; err != nil {
		log.Printf("ERROR creating challenge for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create challenge"})
	}

	s.Notifier.Publish(c.Context(), "challenge_created")

	return c.Status(201).JSON(challenge)
}

// GetChallengeFeeds returns the seven tab views for a viewer, derived from
// the hub's working set, plus the viewer's mirrored points balance as a pure
// UX hint (e.g. greying out an accept button). The hint never gates the
// accept call — the acceptance transaction re-checks server-side.
func (s *ChallengeService) GetChallengeFeeds(c *fiber.Ctx) error {
	viewerID := c.Query("viewer")
	if viewerID == "" {
		if v, ok := c.Locals("user_id").(string); ok {
			viewerID = v
		}
	}
	if viewerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "viewer is required"})
	}

	feeds := s.Hub.Feeds(viewerID)

	var viewerPoints *int64
	var ranking models.PlayerRanking
	if err := s.DB.Where("user_id = ?", viewerID).First(&ranking).Error; err == nil {
		viewerPoints = &ranking.SpaPoints
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("WARN: ranking lookup failed for viewer %s: %v", viewerID, err)
	}

	return c.JSON(fiber.Map{
		"feeds":         feeds,
		"viewer_points": viewerPoints,
	})
}

func (s *ChallengeService) GetChallengeByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var challenge models.Challenge
	err := s.DB.
		Preload("Challenger").
		Preload("Challenger.Ranking").
		Preload("Opponent").
		Preload("Opponent.Ranking").
		First(&challenge, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		log.Printf("ERROR fetching challenge %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(challenge)
}

// AcceptChallenge runs the acceptance procedure for the authenticated user.
// The backend's decision is authoritative; whatever message and numbers it
// reports are surfaced as-is.
func (s *ChallengeService) AcceptChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	userID := c.Locals("user_id").(string)

	if challengeID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "challenge id required in URL"})
	}

	result, err := s.Backend.AcceptChallenge(c.Context(), challengeID, userID)
	if err != nil {
		log.Printf("ERROR accepting challenge %s for %s: %v", challengeID, userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "accept failed, please try again"})
	}

	if !result.Success {
		status := 409
		if result.Error == "challenge not found" {
			status = 404
		} else if result.RequiredPoints > 0 {
			// insufficient stake — structured shortfall response
			status = 400
		}
		return c.Status(status).JSON(result)
	}

	// Refresh the working set immediately so the accepted challenge moves
	// tabs without waiting for the debounced notification path.
	if err := s.Hub.Refresh(c.Context()); err != nil {
		log.Printf("WARN: post-accept refetch failed: %v", err)
	}
	s.Notifier.Publish(c.Context(), "challenge_accepted")

	if s.OnAccepted != nil {
		s.OnAccepted(result)
	}

	return c.JSON(result)
}

// CancelChallenge lets the challenger withdraw a challenge nobody has
// accepted yet. Cancelled is terminal.
func (s *ChallengeService) CancelChallenge(c *fiber.Ctx) error {
	challengeID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	if challenge.ChallengerID != userID {
		return c.Status(403).JSON(fiber.Map{"error": "only the challenger can cancel"})
	}
	if challenge.HasOpponent() ||
		(challenge.Status != models.ChallengeStatusPending && challenge.Status != models.ChallengeStatusOpen) {
		return c.Status(409).JSON(fiber.Map{"error": "challenge can no longer be cancelled", "status": challenge.Status})
	}

	if err := s.DB.Model(&challenge).Updates(map[string]interface{}{
		"status":     models.ChallengeStatusCancelled,
		"updated_at": s.Clock.Now(),
	}).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "cancel failed"})
	}

	s.Notifier.Publish(c.Context(), "challenge_cancelled")
	return c.JSON(fiber.Map{"message": "challenge cancelled", "id": challenge.ID})
}

// CompleteChallenge records the match result. Point settlement is the
// ranking service's job — this only flips the lifecycle state and closes
// the match row.
func (s *ChallengeService) CompleteChallenge(c *fiber.Ctx) error {
	type Req struct {
		WinnerID        string `json:"winner_id"`
		ChallengerScore int    `json:"challenger_score"`
		OpponentScore   int    `json:"opponent_score"`
	}

	challengeID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	if !challenge.Involves(userID) {
		return c.Status(403).JSON(fiber.Map{"error": "only participants can submit a result"})
	}
	if challenge.Status != models.ChallengeStatusAccepted && challenge.Status != models.ChallengeStatusOngoing {
		return c.Status(409).JSON(fiber.Map{"error": "challenge is not in a completable state", "status": challenge.Status})
	}
	if !challenge.Involves(req.WinnerID) {
		return c.Status(400).JSON(fiber.Map{"error": "winner_id must be one of the participants"})
	}

	now := s.Clock.Now()
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&challenge).Updates(map[string]interface{}{
			"status":           models.ChallengeStatusCompleted,
			"winner_id":        req.WinnerID,
			"challenger_score": req.ChallengerScore,
			"opponent_score":   req.OpponentScore,
			"completed_at":     now,
			"updated_at":       now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Match{}).
			Where("challenge_id = ?", challenge.ID).
			Updates(map[string]interface{}{
				"status":           "finished",
				"winner_id":        req.WinnerID,
				"challenger_score": req.ChallengerScore,
				"opponent_score":   req.OpponentScore,
				"finished_at":      now,
				"updated_at":       now,
			}).Error
	})
	if err != nil {
		log.Printf("ERROR completing challenge %s: %v", challengeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to record result"})
	}

	s.Notifier.Publish(c.Context(), "challenge_completed")
	return c.JSON(fiber.Map{"message": "result recorded", "id": challenge.ID, "winner_id": req.WinnerID})
}

// StreamChallengeChanges streams change events over SSE so clients know to
// refetch their feeds. The payload is just the event name — clients never
// patch from it.
func (s *ChallengeService) StreamChallengeChanges(c *fiber.Ctx) error {
	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, closeSub := s.Notifier.Events(c.Context())

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer closeSub()

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: challenge\ndata: %s\n\n", event)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
