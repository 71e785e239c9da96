package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"wsguardian/internal/infra/config"
	"wsguardian/internal/queue"
)

// fakeCollaborator is a test double for the five-method Collaborator
// capability; HandleMessage records every payload it is handed.
type fakeCollaborator struct {
	url             string
	identifier      string
	lastConnectedAt string

	received chan []byte
	notified atomic.Bool
}

func newFakeCollaborator(url string) *fakeCollaborator {
	return &fakeCollaborator{
		url:             url,
		identifier:      "c-1",
		lastConnectedAt: "tok-1",
		received:        make(chan []byte, 16),
	}
}

func (f *fakeCollaborator) URL() string             { return f.url }
func (f *fakeCollaborator) Identifier() string      { return f.identifier }
func (f *fakeCollaborator) LastConnectedAt() string { return f.lastConnectedAt }
func (f *fakeCollaborator) HandleMessage(payload []byte) {
	f.received <- append([]byte(nil), payload...)
}
func (f *fakeCollaborator) NotifyMaxRetriesReached() { f.notified.Store(true) }

func testConfig() config.EnvConfig {
	return config.EnvConfig{
		HostIdentifier:         "h-1",
		ConnectionTimeout:      2 * time.Second,
		RetryInitialDelay:      10 * time.Millisecond,
		RetryMaxDelay:          50 * time.Millisecond,
		RetryLimit:             1000,
		QueueCapacity:          100,
		ShutdownGrace:          2 * time.Second,
		HealthInterval:         time.Hour,
		QueuePressureThreshold: 90,
		DispatchConcurrency:    4,
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// TestSessionHappyPathFIFO covers spec.md S1 plus testable property 3:
// messages enqueued while disconnected are all delivered, in order, once
// on_open fires.
func TestSessionHappyPathFIFO(t *testing.T) {
	headers := make(chan http.Header, 1)
	gotFrames := make(chan string, 3)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for i := 0; i < 3; i++ {
			_, payload, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			gotFrames <- string(payload)
		}
	}))
	defer server.Close()

	collab := newFakeCollaborator(wsURL(server))
	q := queue.New(10, queue.DropOldest)

	// Enqueue before Start: the session is not yet connected, so these
	// messages must be delivered in enqueue order once on_open fires.
	q.Push([]byte(`{"receiver_id":"h-1","data":{"x":1}}`))
	q.Push([]byte(`{"receiver_id":"h-1","data":{"x":2}}`))
	q.Push([]byte(`{"receiver_id":"h-1","data":{"x":3}}`))

	sess := New(testConfig(), collab, q)
	sess.Start()
	defer sess.Stop()

	select {
	case h := <-headers:
		if got := h.Get("identifier"); got != "c-1" {
			t.Errorf("identifier header = %q, want c-1", got)
		}
		if got := h.Get("last-connected-at"); got != "tok-1" {
			t.Errorf("last-connected-at header = %q, want tok-1", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a connection")
	}

	want := []string{
		`{"receiver_id":"h-1","data":{"x":1}}`,
		`{"receiver_id":"h-1","data":{"x":2}}`,
		`{"receiver_id":"h-1","data":{"x":3}}`,
	}
	for i, w := range want {
		select {
		case got := <-gotFrames:
			if got != w {
				t.Errorf("frame %d = %s, want %s", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

// TestSessionPingPong covers spec.md S2/S3: an inbound ping yields an
// automatic pong to the host, followed by a frame to the monitor when
// monitor_identifier is set. The absence of a monitor frame when it is empty
// is not checked.
func TestSessionPingPong(t *testing.T) {
	for _, tc := range []struct {
		name       string
		monitorID  string
		wantFrames int
	}{
		{"no monitor", "", 1},
		{"with monitor", "mon", 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			serverReady := make(chan struct{})
			gotFrames := make(chan map[string]any, 4)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := websocket.Accept(w, r, nil)
				if err != nil {
					return
				}
				defer conn.Close(websocket.StatusNormalClosure, "done")

				ctx := r.Context()
				if err := conn.Write(ctx, websocket.MessageText, []byte(`{"operation":"ping"}`)); err != nil {
					return
				}
				close(serverReady)

				for i := 0; i < tc.wantFrames; i++ {
					_, payload, err := conn.Read(ctx)
					if err != nil {
						return
					}
					var m map[string]any
					if err := json.Unmarshal(payload, &m); err == nil {
						gotFrames <- m
					}
				}
			}))
			defer server.Close()

			cfg := testConfig()
			cfg.MonitorIdentifier = tc.monitorID
			cfg.ClientIdentifier = "c-1"

			collab := newFakeCollaborator(wsURL(server))
			q := queue.New(10, queue.DropOldest)
			sess := New(cfg, collab, q)
			sess.Start()
			defer sess.Stop()

			select {
			case <-serverReady:
			case <-time.After(2 * time.Second):
				t.Fatal("server never sent ping")
			}

			first := readFrame(t, gotFrames)
			data, _ := first["data"].(map[string]any)
			if data["operation"] != "pong" {
				t.Errorf("first frame data.operation = %v, want pong", data["operation"])
			}
			if first["receiver_id"] != "h-1" {
				t.Errorf("first frame receiver_id = %v, want h-1", first["receiver_id"])
			}

			if tc.monitorID != "" {
				second := readFrame(t, gotFrames)
				if second["receiver_id"] != tc.monitorID {
					t.Errorf("monitor frame receiver_id = %v, want %v", second["receiver_id"], tc.monitorID)
				}
			}
		})
	}
}

func readFrame(t *testing.T, ch chan map[string]any) map[string]any {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// TestSessionMaxRetriesReached covers spec.md testable property 7: once the
// initial attempt and retry_limit reconnect attempts have all failed, the
// session reports max retries reached, is no longer running, and has invoked
// the max-retries hook.
func TestSessionMaxRetriesReached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "refused", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.RetryLimit = 3
	cfg.ConnectionTimeout = 200 * time.Millisecond

	collab := newFakeCollaborator(wsURL(server))
	q := queue.New(10, queue.DropOldest)
	sess := New(cfg, collab, q)
	sess.Start()
	defer sess.Stop()

	deadline := time.After(5 * time.Second)
	for {
		status := sess.GetStatus()
		if status.MaxRetriesReached {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("session never reached max retries, last status: %+v", status)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if !collab.notified.Load() {
		t.Error("NotifyMaxRetriesReached was never called")
	}
	if sess.Running() {
		t.Error("Running() = true after max retries, want false")
	}
}

// TestSessionStopIdempotent covers testable property 2: Stop can be called
// more than once and always returns promptly.
func TestSessionStopIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		<-r.Context().Done()
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.ShutdownGrace = 200 * time.Millisecond

	collab := newFakeCollaborator(wsURL(server))
	q := queue.New(10, queue.DropOldest)
	sess := New(cfg, collab, q)
	sess.Start()

	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sess.Stop()
		sess.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * cfg.ShutdownGrace * 3):
		t.Fatal("Stop did not return within the expected bound")
	}

	if sess.Running() {
		t.Error("Running() = true after Stop, want false")
	}
}
