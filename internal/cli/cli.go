// Package cli is the interactive operator console: a readline-driven loop
// that lets a human inspect and drive a running Session without restarting
// the process. Start/Stop are idempotent and integrate with lifecycle.Manager
// the same way the rest of the application's services do.
package cli

import (
	"context"
	"strings"
	"sync"

	"wsguardian/internal/infra/logger"
	"wsguardian/internal/infra/pr"
	"wsguardian/internal/session"
)

// commandDescriptor describes one CLI command: its name and a short
// description rendered by help.
type commandDescriptor struct {
	name        string
	description string
}

// commandDescriptors is the registry rendered by help and the startup
// banner. Names must match the cases in handleCommand.
var commandDescriptors = []commandDescriptor{
	{name: "help", description: "Show available commands with short descriptions"},
	{name: "status", description: "Print the current session status snapshot"},
	{name: "send <json>", description: "Enqueue a raw JSON payload for delivery"},
	{name: "quit", description: "Stop the session and terminate the service"},
}

// Service wraps a *session.Session with a readline front end and integrates
// into the application's lifecycle graph.
type Service struct {
	sess    *session.Session
	stopApp context.CancelFunc

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	onceStart sync.Once
	onceStop  sync.Once
}

// NewService creates a CLI service bound to sess. stopApp is the
// application-wide cancellation invoked by "quit" and by Ctrl-C on an empty
// line.
func NewService(sess *session.Session, stopApp context.CancelFunc) *Service {
	return &Service{sess: sess, stopApp: stopApp}
}

// Start launches the read loop in a background goroutine. Repeat calls are a
// no-op.
func (s *Service) Start(ctx context.Context) {
	s.onceStart.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(runCtx)
		}()
	})
}

// Stop interrupts readline, cancels the run loop, and waits for it to exit.
// Does not itself stop the Session; the lifecycle graph's "session" node
// owns that.
func (s *Service) Stop() {
	s.onceStop.Do(func() {
		if rl := pr.Rl(); rl != nil {
			pr.InterruptReadline()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Service) run(ctx context.Context) {
	logger.Debug("CLI run started")
	pr.SetPrompt("> ")
	pr.Println("wsguardian CLI. Enter commands:", joinCommandNames(commandDescriptors))
	pr.Println("Press '?' or type 'help' for detailed descriptions.")
	installKeyHandlers(s.stopApp)

	defer func() {
		if rl := pr.Rl(); rl != nil {
			_ = rl.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			logger.Debug("CLI: context canceled")
			return
		}

		line, err := pr.Rl().Readline()
		if err != nil {
			logger.Debug("CLI: deactivated (io.EOF)")
			return
		}

		cmd := strings.TrimSpace(line)
		if s.handleCommand(cmd) {
			logger.Debugf("CLI: command %q requested exit", cmd)
			return
		}
	}
}

// installKeyHandlers wires '?' to print help and Ctrl-C to either stop the
// app (empty line) or clear the current line (non-empty), matching ordinary
// interactive shell behavior.
func installKeyHandlers(stop context.CancelFunc) {
	rl := pr.Rl()
	if rl == nil || rl.Config == nil {
		return
	}

	prev := rl.Config.Listener
	rl.Config.SetListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
		if key == '?' {
			printCommandHelp()
			if pos > 0 && pos <= len(line) {
				trimmed := append([]rune{}, line[:pos-1]...)
				trimmed = append(trimmed, line[pos:]...)
				return trimmed, pos - 1, true
			}
			return line, pos, true
		}
		if key == 3 { // Ctrl-C (ETX)
			trimmed := strings.TrimSpace(string(line))
			if trimmed == "" {
				if stop != nil {
					stop()
				}
				pr.InterruptReadline()
				return line, pos, true
			}
			return []rune{}, 0, true
		}
		if prev != nil {
			return prev.OnChange(line, pos, key)
		}
		return nil, 0, false
	})
}

func printCommandHelp() {
	for _, text := range buildCommandHelpLines(commandDescriptors) {
		pr.Println(text)
	}
}

// handleCommand parses a single entered line. Returns true if the CLI
// should terminate ("quit").
func (s *Service) handleCommand(cmd string) bool {
	switch {
	case cmd == "help":
		printCommandHelp()
	case cmd == "status":
		s.handleStatus()
	case cmd == "quit":
		if s.stopApp != nil {
			s.stopApp()
		}
		return true
	case strings.HasPrefix(cmd, "send "):
		s.handleSend(strings.TrimSpace(strings.TrimPrefix(cmd, "send ")))
	case cmd == "":
		// ignore
	default:
		pr.Println("unknown command:", cmd)
	}
	return false
}

// handleStatus pretty-prints the session's current Status snapshot.
func (s *Service) handleStatus() {
	if s.sess == nil {
		pr.ErrPrintln("session is not available")
		return
	}
	pr.PP(s.sess.GetStatus())
}

// handleSend enqueues raw as a frame verbatim. No JSON validation is
// performed here: malformed payloads are the caller's problem, same as any
// other frame handed to SendMessage.
func (s *Service) handleSend(raw string) {
	if raw == "" {
		pr.ErrPrintln("usage: send <json>")
		return
	}
	if s.sess == nil {
		pr.ErrPrintln("session is not available")
		return
	}
	s.sess.SendMessage([]byte(raw))
	pr.Println("enqueued.")
}

func joinCommandNames(descriptors []commandDescriptor) string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.name)
	}
	return strings.Join(names, ", ")
}

func buildCommandHelpLines(descriptors []commandDescriptor) []string {
	lines := make([]string, 0, len(descriptors)+1)
	lines = append(lines, "Available commands:")
	for _, descriptor := range descriptors {
		lines = append(lines, "  "+descriptor.name+" - "+descriptor.description)
	}
	return lines
}
