package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wsguardian/internal/infra/config"
	"wsguardian/internal/infra/logger"
	"wsguardian/internal/transport"
)

type connEventKind int

const (
	evOpen connEventKind = iota
	evClose
	evError
)

type connEvent struct {
	kind        connEventKind
	closeCode   int
	closeReason string
	err         error
}

type cycleOutcome int

const (
	outcomeReconnect cycleOutcome = iota
	outcomeStop
)

// Start is idempotent: transitions Idle -> Connecting and launches the three
// long-lived workers (event loop, send worker, health checker).
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.rootCtx, s.rootCancel = context.WithCancel(context.Background())

		s.mu.Lock()
		s.phase = Connecting
		s.mu.Unlock()

		s.workersWG.Add(3)
		go s.runEventLoop()
		go s.runSendWorker()
		go s.runHealthChecker()
	})
}

func (s *Session) setEventWorkerAlive(v bool) {
	s.mu.Lock()
	s.eventWorkerAlive = v
	s.mu.Unlock()
}

func (s *Session) setSendWorkerAlive(v bool) {
	s.mu.Lock()
	s.sendWorkerAlive = v
	s.mu.Unlock()
}

func (s *Session) setHealthWorkerAlive(v bool) {
	s.mu.Lock()
	s.healthWorkerAlive = v
	s.mu.Unlock()
}

// runEventLoop drives the Transport Adapter through repeated connect cycles
// until told to stop. This is the "Event Loop" worker from the concurrency
// model: it creates one Transport Adapter per connection attempt and consumes
// that adapter's open/close/error events. The callbacks themselves run on the
// adapter's reader goroutine; on_message is handled there directly.
func (s *Session) runEventLoop() {
	defer s.workersWG.Done()
	s.setEventWorkerAlive(true)
	defer s.setEventWorkerAlive(false)

	for {
		if p := s.currentPhase(); p == Stopping || p == Stopped {
			return
		}

		if s.connectAndWait() == outcomeStop {
			return
		}
	}
}

// connectAndWait runs exactly one connect attempt (arming the connection
// timeout), waits for the attempt's outcome, and, if the attempt fails or
// later disconnects, drives the backoff/retry-limit decision before
// returning. Only one connection attempt is ever in flight at a time,
// satisfying invariant 1.
func (s *Session) connectAndWait() cycleOutcome {
	s.mu.Lock()
	s.phase = Connecting
	s.mu.Unlock()

	events := make(chan connEvent, 4)
	adapter := transport.New(transport.Handlers{
		OnOpen: func() {
			select {
			case events <- connEvent{kind: evOpen}:
			default:
			}
		},
		OnMessage: func(payload []byte, kind transport.MessageKind) {
			s.onMessage(payload)
		},
		OnClose: func(code int, reason string) {
			select {
			case events <- connEvent{kind: evClose, closeCode: code, closeReason: reason}:
			default:
			}
		},
		OnError: func(err error) {
			select {
			case events <- connEvent{kind: evError, err: err}:
			default:
			}
		},
	})

	timer := time.NewTimer(s.cfg.ConnectionTimeout)
	defer timer.Stop()

	headers := map[string]string{
		"identifier":        s.collaborator.Identifier(),
		"last-connected-at": s.collaborator.LastConnectedAt(),
	}
	adapter.Connect(s.rootCtx, s.collaborator.URL(), headers)

	select {
	case <-s.rootCtx.Done():
		adapter.Close()
		return outcomeStop
	case <-timer.C:
		logger.Warn("session: connection timeout", zap.Duration("timeout", s.cfg.ConnectionTimeout))
		adapter.Close()
		return s.onDisconnected()
	case ev := <-events:
		switch ev.kind {
		case evOpen:
			timer.Stop()
			s.handleOpen(adapter)
			return s.waitForDisconnect(adapter, events)
		default:
			adapter.Close()
			return s.onDisconnected()
		}
	}
}

// handleOpen transitions to Connected (its caller has already stopped the
// connection timeout): stores the transport handle, resets the retry state
// (invariant 4's reset case), and persists the identity token when an
// identity store is configured.
func (s *Session) handleOpen(adapter *transport.Adapter) {
	s.mu.Lock()
	s.phase = Connected
	s.transportHandle = adapter
	s.retryCount = 0
	s.maxRetriesReached = false
	s.mu.Unlock()

	logger.Info("session: connected", zap.String("url", s.cfg.URL))

	if s.cfg.IdentityStoreFile == "" {
		return
	}
	if err := config.PersistLastConnectedAt(s.collaborator.LastConnectedAt()); err != nil {
		logger.Warn("session: persist identity token failed", zap.Error(err))
	}
}

// waitForDisconnect blocks while Connected, waiting for the transport to
// report a close/error or for Stop to be requested.
func (s *Session) waitForDisconnect(adapter *transport.Adapter, events chan connEvent) cycleOutcome {
	select {
	case <-s.rootCtx.Done():
		adapter.Close()
		return outcomeStop
	case ev := <-events:
		switch ev.kind {
		case evClose:
			logger.Info("session: connection closed", zap.Int("code", ev.closeCode), zap.String("reason", ev.closeReason))
		case evError:
			logger.Warn("session: transport error", zap.Error(ev.err))
		}
		adapter.Close()
		return s.onDisconnected()
	}
}

// onDisconnected runs the backoff decision after a failed or lost
// connection. Only the event loop calls it, once per connection attempt: the
// first close/error event of an attempt decides the outcome, and any later
// event of the same attempt (e.g. on_error then on_close) is left unread in
// that attempt's abandoned events channel. It returns outcomeStop at once if
// Stop has begun, and enforces invariant 4: reaching
// retry_count == retry_limit is terminal.
func (s *Session) onDisconnected() cycleOutcome {
	s.mu.Lock()
	if s.phase == Stopping || s.phase == Stopped {
		s.mu.Unlock()
		return outcomeStop
	}

	if s.retryCount >= s.cfg.RetryLimit {
		s.phase = Stopped
		s.maxRetriesReached = true
		s.mu.Unlock()
		logger.Error("session: max retries reached", zap.Int("retry_limit", s.cfg.RetryLimit))
		s.collaborator.NotifyMaxRetriesReached()
		return outcomeStop
	}

	s.phase = Reconnecting
	delay := s.backoffDelay(s.retryCount)
	s.retryCount++
	s.mu.Unlock()

	logger.Info("session: reconnecting", zap.Duration("delay", delay))

	if !s.interruptibleSleep(delay) {
		return outcomeStop
	}
	return outcomeReconnect
}

// onMessage implements the Receive Dispatcher's synchronous portion (the
// steps 1-2); step 3 (user callback dispatch) is in dispatcher.go.
func (s *Session) onMessage(payload []byte) {
	s.mu.Lock()
	s.lastMessageAt = time.Now()
	s.mu.Unlock()

	if isPing(payload) {
		s.queue.Push(buildPongFrame(s.cfg.HostIdentifier))
		if s.cfg.MonitorIdentifier != "" {
			s.queue.Push(buildMonitorFrame(s.cfg.MonitorIdentifier, s.cfg.ClientIdentifier, s.GetStatus()))
		}
	}

	s.dispatch(payload)
}
