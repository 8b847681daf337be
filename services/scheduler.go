// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const (
	// SweepSettleDelay gives the hub's initial load time to settle before
	// the first expiry pass runs.
	SweepSettleDelay = 10 * time.Second

	// SweepInterval is the fixed sweep cadence after the first pass.
	SweepInterval = 90 * time.Second
)

// StartExpiryScheduler wires the auto-expiry sweeper onto a fixed cadence:
// first pass shortly after boot, then every SweepInterval. The hub itself
// skips cycles with nothing that can expire.
func StartExpiryScheduler(hub *ChallengeHub, clock clockwork.Clock) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(SweepInterval),
		gocron.NewTask(func() {
			hub.Sweep(context.Background())
		}),
		gocron.WithStartAt(gocron.WithStartDateTime(clock.Now().Add(SweepSettleDelay))),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("🕒 Expiry sweeper scheduled (first pass in %s, then every %s)", SweepSettleDelay, SweepInterval)
	return sched, nil
}
