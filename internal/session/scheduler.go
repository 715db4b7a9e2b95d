package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the periodic update cycle while a session is Running.
// Each controller owns its scheduler instance; there is no process-wide
// timer. Ticks never overlap: a tick that is still executing suppresses
// the next one instead of running concurrently.
type Scheduler struct {
	interval time.Duration
	tick     func()
	logger   zerolog.Logger

	cancel   context.CancelFunc
	inFlight atomic.Bool
}

// NewScheduler creates a scheduler that invokes tick every interval.
func NewScheduler(interval time.Duration, tick func(), logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		tick:     tick,
		logger:   logger,
	}
}

// Start launches the timer loop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.TryTick()
			}
		}
	}()
}

// Stop cancels the timer. No new ticks fire after Stop returns; a tick
// already in flight is discarded at commit time by the controller's
// generation check.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// TryTick runs one update cycle unless one is already in flight, in which
// case the request is skipped. Faults inside a tick are caught here; the
// loop keeps scheduling.
func (s *Scheduler) TryTick() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("Tick skipped, previous tick still running")
		return false
	}
	defer s.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Tick fault recovered")
		}
	}()

	s.tick()
	return true
}
