// services/backend.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sabo-arena-service/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcceptResult is the structured outcome of the acceptance procedure.
// Precondition failures come back as Success=false with a message (and the
// server-side numbers when the cause is an insufficient stake) — they are
// NOT transport errors. Callers must surface Error verbatim.
type AcceptResult struct {
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	RequiredPoints int64             `json:"required_points,omitempty"`
	UserPoints     int64             `json:"user_points,omitempty"`
	Shortfall      int64             `json:"shortfall,omitempty"`
	Challenge      *models.Challenge `json:"challenge,omitempty"`
	MatchID        string            `json:"match_id,omitempty"`
}

// ChallengeBackend is the remote collaborator boundary for the hub and the
// sweeper. The production implementation talks to Postgres; tests inject
// fakes.
type ChallengeBackend interface {
	// ListChallenges returns all challenge rows ordered by creation time
	// descending, with participant profiles and rankings joined in.
	ListChallenges(ctx context.Context) ([]models.Challenge, error)

	// ExpireChallenges issues one bulk status update for exactly the given
	// id set.
	ExpireChallenges(ctx context.Context, ids []string, now time.Time) error

	// AcceptChallenge atomically assigns userID as opponent, enforcing the
	// points-balance precondition server-side.
	AcceptChallenge(ctx context.Context, challengeID, userID string) (*AcceptResult, error)
}

// GormBackend is the Postgres-backed ChallengeBackend.
type GormBackend struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewGormBackend(db *gorm.DB, clock clockwork.Clock) *GormBackend {
	return &GormBackend{DB: db, Clock: clock}
}

func (b *GormBackend) ListChallenges(ctx context.Context) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := b.DB.WithContext(ctx).
		Preload("Challenger").
		Preload("Challenger.Ranking").
		Preload("Opponent").
		Preload("Opponent.Ranking").
		Order("created_at DESC").
		Find(&challenges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	return challenges, nil
}

func (b *GormBackend) ExpireChallenges(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	// Terminal rows are absorbing — guard the bulk write so a racing
	// completion is never clobbered.
	return b.DB.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("id IN ? AND status NOT IN ('completed','cancelled','expired')", ids).
		Updates(map[string]interface{}{
			"status":     models.ChallengeStatusExpired,
			"updated_at": now,
		}).Error
}

// evaluateAcceptance is the precondition check run inside the acceptance
// transaction, after the challenge (and ranking) rows have been locked.
// userPoints is the accepter's server-side balance; hasRanking is false when
// no ranking row exists for them. A nil return means all preconditions hold.
func evaluateAcceptance(c *models.Challenge, userID string, userPoints int64, hasRanking bool, now time.Time) *AcceptResult {
	if c.ChallengerID == userID {
		return &AcceptResult{Success: false, Error: "you cannot accept your own challenge"}
	}
	if c.HasOpponent() ||
		(c.Status != models.ChallengeStatusPending && c.Status != models.ChallengeStatusOpen) {
		return &AcceptResult{Success: false, Error: "challenge has already been accepted or is closed"}
	}
	if IsChallengeExpired(c, now) {
		return &AcceptResult{Success: false, Error: "challenge has expired"}
	}
	if c.BetPoints > 0 {
		if !hasRanking || userPoints < c.BetPoints {
			return &AcceptResult{
				Success:        false,
				Error:          fmt.Sprintf("insufficient SPA points: need %d, you have %d (short %d)", c.BetPoints, userPoints, c.BetPoints-userPoints),
				RequiredPoints: c.BetPoints,
				UserPoints:     userPoints,
				Shortfall:      c.BetPoints - userPoints,
			}
		}
	}
	return nil
}

func (b *GormBackend) AcceptChallenge(ctx context.Context, challengeID, userID string) (*AcceptResult, error) {
	var result *AcceptResult
	now := b.Clock.Now()

	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Challenge
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&c, "id = ?", challengeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = &AcceptResult{Success: false, Error: "challenge not found"}
				return nil
			}
			return fmt.Errorf("failed to lock challenge: %w", err)
		}

		// Re-read the balance under lock so a concurrent accept or points
		// deduction can't slip past the precondition.
		var userPoints int64
		hasRanking := false
		if c.BetPoints > 0 {
			var ranking models.PlayerRanking
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", userID).
				First(&ranking).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to lock ranking: %w", err)
			}
			if err == nil {
				hasRanking = true
				userPoints = ranking.SpaPoints
			}
		}

		if res := evaluateAcceptance(&c, userID, userPoints, hasRanking, now); res != nil {
			result = res
			return nil
		}

		opponentID := userID
		if err := tx.Model(&c).Updates(map[string]interface{}{
			"opponent_id": opponentID,
			"status":      models.ChallengeStatusAccepted,
			"updated_at":  now,
		}).Error; err != nil {
			return fmt.Errorf("failed to assign opponent: %w", err)
		}

		match := models.Match{
			ID:            uuid.NewString(),
			ChallengeID:   c.ID,
			ChallengerID:  c.ChallengerID,
			OpponentID:    opponentID,
			ScheduledTime: c.ScheduledTime,
			BetPoints:     c.BetPoints,
			RaceTo:        c.RaceTo,
			Status:        "scheduled",
		}
		if err := tx.Create(&match).Error; err != nil {
			return fmt.Errorf("failed to schedule match: %w", err)
		}

		c.OpponentID = &opponentID
		c.Status = models.ChallengeStatusAccepted
		result = &AcceptResult{Success: true, Challenge: &c, MatchID: match.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
