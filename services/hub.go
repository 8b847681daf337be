// services/hub.go
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"sabo-arena-service/models"

	"github.com/jonboulle/clockwork"
)

// ChallengeHub owns the in-memory challenge working set the feed endpoints
// and the sweeper operate on. The cache is only ever replaced wholesale
// (refetch over patch) — the single exception is the sweeper dropping rows
// it just expired remotely, which are expected to vanish from active views
// immediately rather than wait for the next refetch.
type ChallengeHub struct {
	backend ChallengeBackend
	clock   clockwork.Clock

	mu         sync.RWMutex
	challenges []models.Challenge
	refreshed  time.Time
}

func NewChallengeHub(backend ChallengeBackend, clock clockwork.Clock) *ChallengeHub {
	return &ChallengeHub{backend: backend, clock: clock}
}

// Refresh replaces the working set with a fresh bulk read.
func (h *ChallengeHub) Refresh(ctx context.Context) error {
	challenges, err := h.backend.ListChallenges(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.challenges = challenges
	h.refreshed = h.clock.Now()
	h.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the working set.
func (h *ChallengeHub) Snapshot() []models.Challenge {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Challenge, len(h.challenges))
	copy(out, h.challenges)
	return out
}

// Feeds derives the seven tab views for a viewer from the current snapshot.
func (h *ChallengeHub) Feeds(viewerID string) ChallengeFeeds {
	return BuildChallengeFeeds(h.Snapshot(), viewerID, h.clock.Now())
}

// HasPotentiallyExpiring reports whether any cached challenge could still
// hit an expiry rule. When false the sweeper skips its cycle instead of
// issuing a needless remote call.
func (h *ChallengeHub) HasPotentiallyExpiring() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := range h.challenges {
		if CanStillExpire(&h.challenges[i]) {
			return true
		}
	}
	return false
}

// Sweep runs one expiry pass: classify the snapshot, commit the transition
// remotely in one bulk write, then drop the transitioned rows locally.
// It never propagates errors — a failed remote write abandons the pass and
// the next scheduled tick is the retry. Returns the transitioned ids.
func (h *ChallengeHub) Sweep(ctx context.Context) []string {
	if !h.HasPotentiallyExpiring() {
		return nil
	}

	now := h.clock.Now()
	ids := ExpiredChallengeIDs(h.Snapshot(), now)
	if len(ids) == 0 {
		return nil
	}

	if err := h.backend.ExpireChallenges(ctx, ids, now); err != nil {
		// Fail closed: no local state change, retry next pass.
		log.Printf("❌ [SWEEP] Failed to expire %d challenge(s): %v", len(ids), err)
		return nil
	}

	h.removeByID(ids)
	log.Printf("🧹 [SWEEP] Expired %d challenge(s)", len(ids))
	return ids
}

func (h *ChallengeHub) removeByID(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	h.mu.Lock()
	kept := h.challenges[:0]
	for _, c := range h.challenges {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	h.challenges = kept
	h.mu.Unlock()
}

// RunInvalidationLoop consumes "something changed" signals and refetches the
// working set wholesale, debounced so bursty notifications collapse into a
// single remote read.
func (h *ChallengeHub) RunInvalidationLoop(ctx context.Context, signals <-chan struct{}, debounce time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			timer := h.clock.After(debounce)
		coalesce:
			for {
				select {
				case <-ctx.Done():
					return
				case <-signals:
					// swallow — already refetching after the debounce window
				case <-timer:
					break coalesce
				}
			}
			if err := h.Refresh(ctx); err != nil {
				log.Printf("⚠️ [HUB] Refetch after change notification failed: %v", err)
			}
		}
	}
}
