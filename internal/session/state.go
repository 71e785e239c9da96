// Package session implements the connection supervisor and message-pump
// core: the Supervisor state machine (this file and backoff.go/session.go),
// the Send Worker (sendworker.go), the Receive Dispatcher (dispatcher.go),
// the Health Checker (health.go), the Shutdown Coordinator (shutdown.go),
// and the wire-format helpers (wire.go). Grounded on a connection manager's
// generation-channel idiom, generalized from a single global singleton into
// an instantiable Session.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"wsguardian/internal/infra/config"
	"wsguardian/internal/queue"
	"wsguardian/internal/transport"
)

// Phase is one of the Supervisor's states.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Connected
	Reconnecting
	Stopping
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Collaborator is the five-method capability the Supervisor needs from its
// embedding application: the template-method hooks re-expressed as an
// injected interface per the design notes.
type Collaborator interface {
	URL() string
	Identifier() string
	LastConnectedAt() string
	HandleMessage(payload []byte)
	NotifyMaxRetriesReached()
}

// Status is the snapshot exposed to the application.
type Status struct {
	Connected         bool
	Started           bool
	Stopping          bool
	RetryCount        int
	MaxRetriesReached bool
	QueueSize         int
	EventWorkerAlive  bool
	SendWorkerAlive   bool
}

// Session is the Supervisor: it owns the connection lifecycle, the three
// long-lived workers (event loop, send worker, health checker), and the
// shared state block guarded by mu. At most one Session is meant to be
// constructed per process (see New), matching the source's singleton
// policy, though correctness does not depend on enforcing it.
type Session struct {
	cfg          config.EnvConfig
	collaborator Collaborator
	queue        *queue.Queue
	limiter      *rate.Limiter // nil if SendRateLimit == 0
	dispatchSem  *semaphore.Weighted

	mu                sync.Mutex
	phase             Phase
	retryCount        int
	maxRetriesReached bool
	lastMessageAt     time.Time
	transportHandle   *transport.Adapter
	eventWorkerAlive  bool
	sendWorkerAlive   bool
	healthWorkerAlive bool

	startOnce sync.Once
	stopOnce  sync.Once

	rootCtx    context.Context
	rootCancel context.CancelFunc
	workersWG  sync.WaitGroup
}

var (
	singleton     *Session
	singletonOnce sync.Once
)

// New constructs a Session bound to cfg, collaborator, and queue q.
// Use NewSingleton instead to enforce the one-instance-per-process policy.
func New(cfg config.EnvConfig, collaborator Collaborator, q *queue.Queue) *Session {
	var limiter *rate.Limiter
	if cfg.SendRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRateLimit), 1)
	}

	return &Session{
		cfg:          cfg,
		collaborator: collaborator,
		queue:        q,
		limiter:      limiter,
		dispatchSem:  semaphore.NewWeighted(int64(cfg.DispatchConcurrency)),
		phase:        Idle,
	}
}

// NewSingleton lazily constructs the process-wide Session on first call and
// returns the same instance on subsequent calls, modeling the source's
// language-level singleton as a thread-safe factory.
func NewSingleton(cfg config.EnvConfig, collaborator Collaborator, q *queue.Queue) *Session {
	singletonOnce.Do(func() {
		singleton = New(cfg, collaborator, q)
	})
	return singleton
}

// Running reports phase ∉ {Idle, Stopping, Stopped}.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != Idle && s.phase != Stopping && s.phase != Stopped
}

// currentPhase reads phase under lock; a handful of call sites need this
// without pulling in the rest of Status().
func (s *Session) currentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// GetStatus returns the current Status snapshot.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Connected:         s.phase == Connected,
		Started:           s.phase != Idle,
		Stopping:          s.phase == Stopping || s.phase == Stopped,
		RetryCount:        s.retryCount,
		MaxRetriesReached: s.maxRetriesReached,
		QueueSize:         s.queue.Size(),
		EventWorkerAlive:  s.eventWorkerAlive,
		SendWorkerAlive:   s.sendWorkerAlive,
	}
}

// SendMessage enqueues frame for delivery. Non-blocking: applies the
// configured overflow policy instead of ever failing the caller.
func (s *Session) SendMessage(frame []byte) {
	s.queue.Push(frame)
}

func (s *Session) logFields() []zap.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []zap.Field{
		zap.String("phase", s.phase.String()),
		zap.Int("retry_count", s.retryCount),
	}
}
