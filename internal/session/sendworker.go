package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wsguardian/internal/infra/logger"
	"wsguardian/internal/queue"
)

const sendWorkerPopTimeout = 1 * time.Second

// runSendWorker drains the outbound queue for the session's lifetime. A
// popped frame is held by this worker (not returned to the queue's tail)
// while waiting for a live transport, so enqueue order is preserved once
// on_open fires; only Stop returns a still-held frame to the queue, so the
// Shutdown Coordinator's drain count still accounts for it.
func (s *Session) runSendWorker() {
	defer s.workersWG.Done()
	s.setSendWorkerAlive(true)
	defer s.setSendWorkerAlive(false)

	for {
		msg, err := s.queue.Pop(sendWorkerPopTimeout)
		if err == queue.ErrEmpty {
			if s.currentPhase() == Stopping {
				return
			}
			continue
		}

		if queue.IsStopSignal(msg) || s.currentPhase() == Stopping {
			return
		}

		frame, ok := msg.([]byte)
		if !ok {
			logger.Error("session: send worker popped non-frame value; dropping")
			continue
		}

		if !s.sendFrame(frame) {
			return
		}
	}
}

// sendFrame holds frame until the session is Connected, then sends it, and
// reports whether the worker should keep running. It never returns frame to
// the queue's tail while waiting — only on Stop, so drain accounting still
// sees it.
func (s *Session) sendFrame(frame []byte) bool {
	for {
		s.mu.Lock()
		phase := s.phase
		handle := s.transportHandle
		s.mu.Unlock()

		switch {
		case phase == Stopping || phase == Stopped:
			s.queue.Push(frame)
			return false
		case phase == Connected && handle != nil:
			s.rateLimitWait()
			if err := handle.Send(context.Background(), frame); err != nil {
				// Drop + log: re-enqueueing here risks infinite redelivery of
				// a malformed frame, and the Supervisor will drive reconnect
				// via its own callbacks regardless.
				logger.Warn("session: send failed", zap.Error(err))
			}
			return true
		default:
			time.Sleep(1 * time.Second)
		}
	}
}

// rateLimitWait applies the optional additive send-rate governor (the
// supplement). Bounded to the same 1-second responsiveness budget as the
// rest of the worker loop: on expiry it simply proceeds rather than
// blocking indefinitely, so a saturated limiter can't wedge shutdown.
func (s *Session) rateLimitWait() {
	if s.limiter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = s.limiter.Wait(ctx)
}
