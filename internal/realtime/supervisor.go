package realtime

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 32 * time.Second
)

// Runner is a blocking unit of work the supervisor keeps alive, typically the
// change-event feed.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor recreates a failed runner with exponential backoff: 1s, 2s, 4s,
// up to 32s, unlimited attempts. A run that outlives the maximum delay resets
// the backoff. This makes reconnection an explicit supervised loop instead of
// a side effect of caller lifecycles.
type Supervisor struct {
	Runner  Runner
	Logger  *slog.Logger
	Initial time.Duration
	Max     time.Duration
}

func (s *Supervisor) Run(ctx context.Context) error {
	delay := s.initial()
	for {
		started := time.Now()
		err := s.Runner.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > s.max() {
			delay = s.initial()
		}
		if s.Logger != nil {
			s.Logger.Warn("realtime feed stopped, restarting", "error", err, "retry_in", delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.max() {
			delay = s.max()
		}
	}
}

func (s *Supervisor) initial() time.Duration {
	if s.Initial > 0 {
		return s.Initial
	}
	return defaultInitialDelay
}

func (s *Supervisor) max() time.Duration {
	if s.Max > 0 {
		return s.Max
	}
	return defaultMaxDelay
}
