// Package scheduler implements the Scheduler (C6, §4.6): a ticker-based
// due-work leaser that atomically claims scheduled posts under
// FOR UPDATE SKIP LOCKED and feeds a bounded worker pool which drives each
// post through the PublishFSM (§4.7).
package scheduler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ktharrington/Scheduler-Application/internal/mutexreg"
	"github.com/ktharrington/Scheduler-Application/internal/telemetry"
	"github.com/ktharrington/Scheduler-Application/pkg/post"
)

// Config holds the Scheduler's tunables (§4.6, §5).
type Config struct {
	TickInterval   time.Duration
	LeaseTTL       time.Duration
	LeaseGrace     time.Duration
	BatchSize      int
	WorkerPoolSize int
}

// Scheduler polls the post store every TickInterval, leases due work, and
// hands leased post ids to a bounded worker pool. It blocks on Run until
// ctx is cancelled.
type Scheduler struct {
	cfg     Config
	store   *post.Store
	driver  *Driver
	mutexes *mutexreg.Registry
	logger  *slog.Logger

	work chan int64
}

// New creates a Scheduler. driver drives a single leased post's FSM to
// completion (or back to scheduled, or to failed).
func New(cfg Config, store *post.Store, driver *Driver, logger *slog.Logger) *Scheduler {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 16
	}
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		driver:  driver,
		mutexes: mutexreg.New(),
		logger:  logger,
		work:    make(chan int64, cfg.WorkerPoolSize*4),
	}
}

// Run starts the leaser and watchdog ticker loops and the worker pool. It
// blocks until ctx is cancelled (§4.6, §5).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick_interval", s.cfg.TickInterval, "lease_ttl", s.cfg.LeaseTTL, "workers", s.cfg.WorkerPoolSize)

	for i := 0; i < s.cfg.WorkerPoolSize; i++ {
		go s.worker(ctx)
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Tick runs a single lease+watchdog cycle synchronously; it is also exposed
// standalone for the on-demand publish_due endpoint (§9 Open Question: this
// spec treats publish_due as the equivalent of one Scheduler tick).
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	reclaimed, err := s.store.ReclaimExpiredLeases(ctx, s.cfg.LeaseTTL)
	if err != nil {
		s.logger.Error("reclaiming expired leases", "error", err)
	} else if reclaimed > 0 {
		s.logger.Info("reclaimed expired leases", "count", reclaimed)
		telemetry.LeaseExpiredTotal.Add(float64(reclaimed))
	}

	ids, err := s.store.LeaseDue(ctx, s.cfg.BatchSize, s.cfg.LeaseGrace)
	if err != nil {
		s.logger.Error("leasing due posts", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	telemetry.PostsLeasedTotal.Add(float64(len(ids)))

	for _, id := range ids {
		select {
		case s.work <- id:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.work:
			s.process(ctx, id)
		}
	}
}

// process drives one leased post to completion, serialized per account so
// quota consumption and publish ordering are never interleaved within an
// account (§4.6, §5, §9).
func (s *Scheduler) process(ctx context.Context, id int64) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Error("loading leased post", "post_id", id, "error", err)
		return
	}

	release := s.mutexes.Lock(accountKey(p.AccountID))
	defer release()

	start := time.Now()
	s.driver.Drive(ctx, id)
	telemetry.PublishDuration.Observe(time.Since(start).Seconds())
}

func accountKey(accountID int64) string {
	return "account:" + strconv.FormatInt(accountID, 10)
}
