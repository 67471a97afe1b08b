// Package scheduler drives the unbounded polling loop: ensure connection,
// fetch the unseen set, hand the batch to the decision engine, sleep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/mailbot/internal/model"
)

// State represents the current state of the cycle loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateBackoff
)

// Status holds the observable state of the scheduler.
type Status struct {
	State     State
	LastCycle time.Time
	Err       error
}

// failureBackoffFactor scales the base failure backoff into the cool-down
// applied after a failed cycle.
const failureBackoffFactor = 5

// Gateway is the mailbox surface the scheduler drives.
type Gateway interface {
	Connect(ctx context.Context) error
	Connected() bool
	SearchUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*model.Message, error)
	Disconnect()
	Drop()
}

// Engine processes one fetched batch of messages.
type Engine interface {
	ProcessBatch(ctx context.Context, msgs []*model.Message) error
}

// Scheduler runs cycles sequentially forever. Messages are never processed
// in parallel; the exactly-once mark-read guarantee depends on a single
// logical thread of control per mailbox session.
type Scheduler struct {
	gateway Gateway
	engine  Engine
	cfg     model.SchedulerConfig
	logger  *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration)

	mu     sync.Mutex
	status Status
}

// New creates a Scheduler.
func New(
	gateway Gateway,
	engine Engine,
	cfg model.SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Run executes cycles until ctx is cancelled. A failed cycle never stops
// the process: the scheduler logs it, drops the connection so the next
// cycle reconnects, and cools down for five times the failure backoff.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.gateway.Disconnect()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.setStatus(StateRunning, nil)
		processed, err := s.cycle(ctx)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.setStatus(StateBackoff, err)
			s.logger.Error("cycle failed, backing off",
				"error", err,
				"backoff", s.failureBackoff(),
			)
			// Connection state is unknown after a failure; force a
			// reconnect at the start of the next cycle.
			s.gateway.Drop()
			s.sleep(ctx, s.failureBackoff())

		case processed == 0:
			s.setStatus(StateIdle, nil)
			s.sleep(ctx, s.idleInterval())

		default:
			// Unseen mail was handled; poll again immediately to
			// drain any remaining backlog.
			s.setStatus(StateIdle, nil)
			s.logger.Info("cycle complete", "processed", processed)
		}
	}
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// cycle performs one full poll-classify-decide-effect pass over the
// current unseen set and reports how many messages it handled.
func (s *Scheduler) cycle(ctx context.Context) (int, error) {
	if err := s.ensureConnection(ctx); err != nil {
		return 0, err
	}

	uids, err := s.gateway.SearchUnseen(ctx)
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		s.logger.Info("no unseen messages")
		return 0, nil
	}

	msgs := make([]*model.Message, 0, len(uids))
	for _, uid := range uids {
		msg, err := s.gateway.Fetch(ctx, uid)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
	}

	if err := s.engine.ProcessBatch(ctx, msgs); err != nil {
		return 0, err
	}

	return len(msgs), nil
}

// ensureConnection connects with a bounded retry budget and a fixed delay
// between attempts. Exhausting the budget fails the current cycle only.
func (s *Scheduler) ensureConnection(ctx context.Context) error {
	if s.gateway.Connected() {
		return nil
	}

	retries := s.cfg.ConnectRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = s.gateway.Connect(ctx)
		if lastErr == nil {
			return nil
		}

		s.logger.Warn("connect attempt failed",
			"attempt", attempt,
			"retries", retries,
			"error", lastErr,
		)

		if attempt < retries {
			s.sleep(ctx, s.connectRetryDelay())
		}
	}

	return fmt.Errorf("connecting after %d attempts: %w", retries, lastErr)
}

func (s *Scheduler) idleInterval() time.Duration {
	if s.cfg.IdleIntervalSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.cfg.IdleIntervalSec) * time.Second
}

func (s *Scheduler) failureBackoff() time.Duration {
	base := 60 * time.Second
	if s.cfg.FailureBackoffSec > 0 {
		base = time.Duration(s.cfg.FailureBackoffSec) * time.Second
	}
	return failureBackoffFactor * base
}

func (s *Scheduler) connectRetryDelay() time.Duration {
	if s.cfg.ConnectRetryDelaySec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.cfg.ConnectRetryDelaySec) * time.Second
}

func (s *Scheduler) setStatus(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	s.status.Err = err
	if state == StateIdle && err == nil {
		s.status.LastCycle = time.Now()
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
