package session

import "time"

// backoffDelay computes delay = min(retry_initial_delay * 2^retryCount,
// retry_max_delay). retryCount must be read under the state lock by the
// caller.
func (s *Session) backoffDelay(retryCount int) time.Duration {
	delay := s.cfg.RetryInitialDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= s.cfg.RetryMaxDelay {
			return s.cfg.RetryMaxDelay
		}
	}
	if delay > s.cfg.RetryMaxDelay {
		return s.cfg.RetryMaxDelay
	}
	return delay
}

// interruptibleSleep sleeps for d in 1-second slices, returning early (with
// ok=false) as soon as phase enters Stopping or Stopped. This is what makes
// shutdown latency bounded even mid-backoff.
func (s *Session) interruptibleSleep(d time.Duration) (ok bool) {
	const slice = 1 * time.Second

	remaining := d
	for remaining > 0 {
		if p := s.currentPhase(); p == Stopping || p == Stopped {
			return false
		}
		step := slice
		if remaining < step {
			step = remaining
		}
		time.Sleep(step)
		remaining -= step
	}
	return s.currentPhase() != Stopping && s.currentPhase() != Stopped
}
