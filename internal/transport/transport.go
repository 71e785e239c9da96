// Package transport is a thin wrapper around github.com/coder/websocket, the
// assumed third-party framing/handshake library. It exposes connect/send/close
// and delivers on_open/on_message/on_close/on_error callbacks, all from a
// single serialized goroutine per session so the Supervisor never has to
// reason about concurrent callback delivery.
package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"wsguardian/internal/infra/logger"
)

// MessageKind distinguishes text and binary frames, mirroring
// websocket.MessageType without leaking the underlying library's type into
// callers of this package.
type MessageKind int

const (
	KindText MessageKind = iota
	KindBinary
)

// Handlers are the four callbacks the Transport Adapter invokes. All four
// run on the adapter's single reader goroutine; a slow or panicking handler
// must not be assumed safe; the Receive Dispatcher is responsible for
// getting user code off this goroutine (see internal/session/dispatcher.go).
type Handlers struct {
	OnOpen    func()
	OnMessage func(payload []byte, kind MessageKind)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Adapter owns at most one live *websocket.Conn at a time. Connect is
// non-blocking: the dial and the subsequent read loop both run on a
// background goroutine, and completion/failure is signalled exclusively via
// Handlers. Close is idempotent.
type Adapter struct {
	handlers Handlers

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	closeOnce sync.Once
	doneCh    chan struct{}
}

// New constructs an Adapter that will deliver events to handlers.
func New(handlers Handlers) *Adapter {
	return &Adapter{handlers: handlers}
}

// Connect dials url with headers attached and, on success, starts the single
// reader goroutine that serializes all further callback delivery. Returns
// immediately; success or failure is reported via Handlers.OnOpen/OnError.
func (a *Adapter) Connect(ctx context.Context, url string, headers map[string]string) {
	a.mu.Lock()
	a.closed = false
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	go a.dialAndServe(ctx, url, headers)
}

func (a *Adapter) dialAndServe(ctx context.Context, url string, headers map[string]string) {
	httpHeader := make(http.Header, len(headers))
	for k, v := range headers {
		httpHeader.Set(k, v)
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: httpHeader,
	})
	if err != nil {
		logger.Debug("transport: dial failed", zap.Error(err))
		a.handlers.OnError(err)
		// readLoop never starts on this path, so it is never there to close
		// a.doneCh; Close() would otherwise block on <-done forever.
		close(a.doneCh)
		return
	}

	a.mu.Lock()
	if a.closed {
		// Close() raced the dial and already fired; tear down what we just
		// opened. Close() is already blocked on <-a.doneCh, so this path must
		// close it too or Close() would hang forever.
		a.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "closed during connect")
		close(a.doneCh)
		return
	}
	a.conn = conn
	a.mu.Unlock()

	a.handlers.OnOpen()
	a.readLoop(conn)
}

// readLoop is the single serialized context from which on_message/on_close/
// on_error are delivered, per the adapter's event-loop thread-safety
// requirement. coder/websocket requires a continuous reader to service
// control frames (ping/pong/close), so this loop doubles as that reader.
func (a *Adapter) readLoop(conn *websocket.Conn) {
	defer close(a.doneCh)

	for {
		kind, payload, err := conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != -1 {
				a.handlers.OnClose(int(status), err.Error())
			} else {
				a.handlers.OnError(err)
			}
			return
		}

		mk := KindBinary
		if kind == websocket.MessageText {
			mk = KindText
		}
		a.handlers.OnMessage(payload, mk)
	}
}

// Send writes frame as a text message. It may fail if the transport is
// closed or mid-teardown, but it does not wait on the read loop and so never
// blocks the caller on unrelated I/O.
func (a *Adapter) Send(ctx context.Context, frame []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "not connected"}
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// Close is idempotent. It closes the underlying connection (if any) and
// waits for the reader goroutine to observe the closure and exit. That wait
// has no timeout of its own: it lasts as long as the library's close
// handshake takes or, while a dial is still in flight, until the dial
// returns.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		conn := a.conn
		a.closed = true
		done := a.doneCh
		a.mu.Unlock()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		if done != nil {
			<-done
		}
	})
}
