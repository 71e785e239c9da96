package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wsguardian/internal/infra/logger"
)

// dispatch hands payload to the user callback off the transport's I/O
// context, bounding concurrent in-flight callbacks with a weighted
// semaphore (a bounded worker pool) rather than spawning an unbounded
// goroutine per frame. Dispatch goroutines are spawned in arrival order, but
// the Go scheduler does not run them in that order, so they can reach the
// semaphore, and start the callback, out of arrival order; completion order
// is likewise unspecified.
func (s *Session) dispatch(payload []byte) {
	// The semaphore acquire happens inside the spawned goroutine, not here:
	// the caller (the transport's reader goroutine) must never block on
	// dispatch capacity, only on genuine I/O.
	go func() {
		if err := s.dispatchSem.Acquire(context.Background(), 1); err != nil {
			logger.Error("session: dispatch semaphore acquire failed", zap.Error(err))
			return
		}
		defer s.dispatchSem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("session: callback panic recovered", zap.Any("panic", r))
			}
		}()
		s.collaborator.HandleMessage(payload)
	}()
}

// lastMessageAge returns the time elapsed since the last inbound frame, or
// -1 if none has been received yet.
func (s *Session) lastMessageAge(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMessageAt.IsZero() {
		return -1
	}
	return now.Sub(s.lastMessageAt)
}
