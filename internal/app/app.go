// Package app is the composition root: it wires configuration, the outbound
// queue, the Session supervisor, and the operator CLI together, then drives
// their start/stop order through lifecycle.Manager.
package app

import (
	"context"

	"go.uber.org/zap"

	"wsguardian/internal/cli"
	"wsguardian/internal/infra/config"
	"wsguardian/internal/infra/lifecycle"
	"wsguardian/internal/infra/logger"
	"wsguardian/internal/queue"
	"wsguardian/internal/session"
)

// App aggregates the process's long-lived components and their lifecycle
// graph.
type App struct {
	sess       *session.Session
	cliService *cli.Service
	lc         *lifecycle.Manager
	stop       context.CancelFunc
}

// NewApp returns an empty shell. Actual wiring happens in Init.
func NewApp() *App {
	return &App{}
}

// Init builds the queue, the Session, and the CLI, and registers both as
// lifecycle.Manager nodes: "session" has no dependencies, "cli" depends on
// "session" so the operator console never starts before there is a session
// to drive.
func (a *App) Init(ctx context.Context, stop context.CancelFunc) error {
	logger.Info("wsguardian initializing...")

	a.stop = stop
	cfg := config.Env()

	q := queue.New(cfg.QueueCapacity, toQueuePolicy(cfg.OverflowPolicy))
	collaborator := &appCollaborator{cfg: cfg, stop: stop}
	a.sess = session.New(cfg, collaborator, q)
	a.cliService = cli.NewService(a.sess, stop)
	a.lc = lifecycle.New(ctx)

	if err := a.lc.Register("session", "", nil,
		func(nodeCtx context.Context) (context.Context, error) {
			a.sess.Start()
			return nil, nil
		},
		func(context.Context) error {
			a.sess.Stop()
			return nil
		},
	); err != nil {
		return err
	}

	if err := a.lc.Register("cli", "", []string{"session"},
		func(nodeCtx context.Context) (context.Context, error) {
			a.cliService.Start(nodeCtx)
			return nil, nil
		},
		func(context.Context) error {
			a.cliService.Stop()
			return nil
		},
	); err != nil {
		return err
	}

	return nil
}

// Run starts every registered node, blocks until ctx is cancelled (by a
// signal, the CLI's "quit", or a max-retries-reached notification), then
// tears everything down in reverse start order.
func (a *App) Run(ctx context.Context) error {
	if err := a.lc.StartAll(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("wsguardian shutting down...")

	return a.lc.Shutdown()
}

func toQueuePolicy(p config.OverflowPolicy) queue.OverflowPolicy {
	switch p {
	case config.DropNewest:
		return queue.DropNewest
	default:
		return queue.DropOldest
	}
}

// appCollaborator implements session.Collaborator over the process's static
// configuration plus the application-wide stop function.
type appCollaborator struct {
	cfg  config.EnvConfig
	stop context.CancelFunc
}

func (c *appCollaborator) URL() string { return c.cfg.URL }

func (c *appCollaborator) Identifier() string { return c.cfg.ClientIdentifier }

func (c *appCollaborator) LastConnectedAt() string { return c.cfg.LastConnectedAt }

func (c *appCollaborator) HandleMessage(payload []byte) {
	logger.Debug("app: inbound message", zap.ByteString("payload", payload))
}

func (c *appCollaborator) NotifyMaxRetriesReached() {
	logger.Error("app: max retries reached, stopping application")
	if c.stop != nil {
		c.stop()
	}
}
