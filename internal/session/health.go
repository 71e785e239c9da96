package session

import (
	"time"

	"go.uber.org/zap"

	"wsguardian/internal/infra/logger"
)

// runHealthChecker runs its own context for the session's lifetime, purely
// observational: it never forces reconnection, keeping the reconnect policy
// single-sourced in the Supervisor.
func (s *Session) runHealthChecker() {
	defer s.workersWG.Done()
	s.setHealthWorkerAlive(true)
	defer s.setHealthWorkerAlive(false)

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.rootCtx.Done():
			return
		case now := <-ticker.C:
			if s.currentPhase() == Stopping || s.currentPhase() == Stopped {
				return
			}
			s.runHealthAudit(now)
		}
	}
}

// runHealthAudit snapshots (phase, queue.size, last_message_at) atomically
// and emits the pressure/staleness alerts and status log described here.
func (s *Session) runHealthAudit(now time.Time) {
	s.mu.Lock()
	phase, lastMessageAt := s.phase, s.lastMessageAt
	status := Status{Connected: phase == Connected, QueueSize: s.queue.Size(),
		RetryCount: s.retryCount, MaxRetriesReached: s.maxRetriesReached}
	s.mu.Unlock()
	age := time.Duration(-1)
	if !lastMessageAt.IsZero() {
		age = now.Sub(lastMessageAt)
	}

	if status.Connected && status.QueueSize > s.cfg.QueuePressureThreshold {
		logger.Error("session: queue pressure",
			zap.Int("queue_size", status.QueueSize),
			zap.Int("threshold", s.cfg.QueuePressureThreshold))
	}

	if status.Connected && age >= 0 && age > s.cfg.HealthInterval {
		logger.Warn("session: stale connection", zap.Duration("age", age))
	}

	logger.Info("session: health snapshot",
		zap.String("phase", phase.String()),
		zap.Int("queue_size", status.QueueSize),
		zap.Int("retry_count", status.RetryCount),
		zap.Bool("max_retries_reached", status.MaxRetriesReached),
	)
}
