package session

import (
	"time"

	"go.uber.org/zap"

	"wsguardian/internal/infra/logger"
	"wsguardian/internal/queue"
)

// Stop implements the Shutdown Coordinator. Idempotent: stopOnce makes every
// call after the first a no-op (a concurrent call waits for the first to
// finish), and a session whose phase is already Stopping/Stopped when the
// first call arrives is left as it is.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.phase == Stopping || s.phase == Stopped {
			s.mu.Unlock()
			return
		}
		s.phase = Stopping
		s.mu.Unlock()

		// Wake a parked Send Worker immediately.
		s.queue.Push(queue.StopSignal)

		// Cancel the root context: unblocks the event loop's select on
		// rootCtx.Done(), closes any live transport via its own Close path,
		// and lets the health checker's ticker select return.
		if s.rootCancel != nil {
			s.rootCancel()
		}

		s.joinWorkersWithGrace()
		s.drainQueue()

		s.mu.Lock()
		s.transportHandle = nil
		s.phase = Stopped
		s.mu.Unlock()
	})
}

// joinWorkersWithGrace waits for the three workers together, up to
// 3 × shutdown_grace (one grace period per worker); workers that exceed it
// are logged (they cannot be forcibly
// killed in Go, only their context is already cancelled, so this is a
// diagnostic, not an actual forced-termination mechanism).
func (s *Session) joinWorkersWithGrace() {
	done := make(chan struct{})
	go func() {
		s.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * s.cfg.ShutdownGrace):
		logger.Warn("session: workers did not join within grace period",
			zap.Duration("grace", s.cfg.ShutdownGrace))
	}
}

// drainQueue empties any remaining queue entries and logs the discard
// count, on shutdown.
func (s *Session) drainQueue() {
	remaining := s.queue.Drain()
	if len(remaining) > 0 {
		logger.Info("session: discarded queued messages on shutdown", zap.Int("count", len(remaining)))
	}
}
