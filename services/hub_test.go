package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sabo-arena-service/models"

	"github.com/jonboulle/clockwork"
)

type fakeBackend struct {
	mu          sync.Mutex
	challenges  []models.Challenge
	listCalls   int
	expireCalls int
	expireErr   error
	expiredIDs  []string
}

func (f *fakeBackend) ListChallenges(ctx context.Context) ([]models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]models.Challenge, len(f.challenges))
	copy(out, f.challenges)
	return out, nil
}

func (f *fakeBackend) ExpireChallenges(ctx context.Context, ids []string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expiredIDs = append(f.expiredIDs, ids...)
	return nil
}

func (f *fakeBackend) AcceptChallenge(ctx context.Context, challengeID, userID string) (*AcceptResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) counts() (list, expire int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.expireCalls
}

func TestHubSweepExpiresAndDrops(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	backend := &fakeBackend{challenges: []models.Challenge{
		{ID: "stale-pending", Status: models.ChallengeStatusPending,
			Timestamps: models.Timestamps{CreatedAt: now.Add(-49 * time.Hour)}},
		{ID: "no-show", Status: models.ChallengeStatusAccepted, OpponentID: strPtr("u2"),
			ScheduledTime: timePtr(now.Add(-31 * time.Minute))},
		{ID: "done", Status: models.ChallengeStatusCompleted},
		{ID: "fresh", Status: models.ChallengeStatusPending,
			Timestamps: models.Timestamps{CreatedAt: now.Add(-time.Hour)}},
	}}

	hub := NewChallengeHub(backend, clock)
	if err := hub.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	ids := hub.Sweep(context.Background())
	if len(ids) != 2 || ids[0] != "stale-pending" || ids[1] != "no-show" {
		t.Fatalf("Sweep() = %v, want [stale-pending no-show]", ids)
	}

	backend.mu.Lock()
	remoteIDs := append([]string(nil), backend.expiredIDs...)
	backend.mu.Unlock()
	if len(remoteIDs) != 2 {
		t.Fatalf("backend saw %v, want the same 2 ids", remoteIDs)
	}

	snapshot := hub.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d challenges after sweep, want 2", len(snapshot))
	}
	for _, c := range snapshot {
		if c.ID == "stale-pending" || c.ID == "no-show" {
			t.Fatalf("expired challenge %q still in snapshot", c.ID)
		}
	}
}

func TestHubSweepFailsClosed(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	backend := &fakeBackend{
		expireErr: errors.New("db unavailable"),
		challenges: []models.Challenge{
			{ID: "stale", Status: models.ChallengeStatusPending,
				Timestamps: models.Timestamps{CreatedAt: now.Add(-49 * time.Hour)}},
		},
	}

	hub := NewChallengeHub(backend, clock)
	if err := hub.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if ids := hub.Sweep(context.Background()); ids != nil {
		t.Fatalf("Sweep() = %v on backend failure, want nil", ids)
	}
	if len(hub.Snapshot()) != 1 {
		t.Fatal("snapshot changed despite failed remote write")
	}

	// Backend recovers; the next pass retries the same row.
	backend.mu.Lock()
	backend.expireErr = nil
	backend.mu.Unlock()

	ids := hub.Sweep(context.Background())
	if len(ids) != 1 || ids[0] != "stale" {
		t.Fatalf("retry Sweep() = %v, want [stale]", ids)
	}
	if len(hub.Snapshot()) != 0 {
		t.Fatal("expired challenge not dropped on retry")
	}
}

func TestHubSweepSkipsIdleCycles(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	backend := &fakeBackend{challenges: []models.Challenge{
		{ID: "done", Status: models.ChallengeStatusCompleted},
		{ID: "gone", Status: models.ChallengeStatusExpired},
		{ID: "ongoing", Status: models.ChallengeStatusOngoing, OpponentID: strPtr("u2")},
	}}

	hub := NewChallengeHub(backend, clock)
	if err := hub.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if ids := hub.Sweep(context.Background()); ids != nil {
		t.Fatalf("Sweep() = %v, want nil for an idle cycle", ids)
	}
	if _, expire := backend.counts(); expire != 0 {
		t.Fatalf("backend received %d expire calls during idle cycle, want 0", expire)
	}
}

func TestHubInvalidationLoopDebounces(t *testing.T) {
	backend := &fakeBackend{}
	hub := NewChallengeHub(backend, clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan struct{}, 8)
	done := make(chan struct{})
	go func() {
		hub.RunInvalidationLoop(ctx, signals, 30*time.Millisecond)
		close(done)
	}()

	// A burst of notifications inside the debounce window collapses to one refetch.
	for i := 0; i < 5; i++ {
		signals <- struct{}{}
	}
	time.Sleep(150 * time.Millisecond)
	if list, _ := backend.counts(); list != 1 {
		t.Fatalf("after burst: %d refetches, want 1", list)
	}

	// A later notification triggers its own refetch.
	signals <- struct{}{}
	time.Sleep(150 * time.Millisecond)
	if list, _ := backend.counts(); list != 2 {
		t.Fatalf("after second signal: %d refetches, want 2", list)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalidation loop did not stop on context cancel")
	}
}
