package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport is an in-memory websocket. Tests push inbound messages and
// read what the connection wrote.
type fakeTransport struct {
	inbound  chan []byte
	readErr  chan error
	written  chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr atomic.Pointer[error]

	mu       sync.Mutex
	controls [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 64),
		readErr: make(chan error, 1),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.inbound:
		return websocket.TextMessage, m, nil
	case err := <-f.readErr:
		return 0, nil, err
	case <-f.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if p := f.writeErr.Load(); p != nil {
		return *p
	}
	select {
	case <-f.closed:
		return errors.New("use of closed network connection")
	default:
	}
	f.written <- append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) WriteControl(_ int, data []byte, _ time.Time) error {
	f.mu.Lock()
	f.controls = append(f.controls, append([]byte(nil), data...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) push(frame string) {
	f.inbound <- []byte(frame)
}

func (f *fakeTransport) failWrites(err error) {
	f.writeErr.Store(&err)
}

func (f *fakeTransport) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var codes []int
	for _, c := range f.controls {
		if len(c) >= 2 {
			codes = append(codes, int(c[0])<<8|int(c[1]))
		}
	}
	return codes
}

type sentFrame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

func (f *fakeTransport) next(t *testing.T) sentFrame {
	t.Helper()
	select {
	case data := <-f.written:
		var frame sentFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(waitFor):
		t.Fatal("no frame written")
		return sentFrame{}
	}
}

// recordingHandler captures dispatch events routed to the application.
type recordingHandler struct {
	mu           sync.Mutex
	ready        []*Ready
	interactions []*Interaction
	others       []string
}

func (h *recordingHandler) OnReady(_ context.Context, r *Ready) {
	h.mu.Lock()
	h.ready = append(h.ready, r)
	h.mu.Unlock()
}

func (h *recordingHandler) OnInteractionCreate(_ context.Context, i *Interaction) {
	h.mu.Lock()
	h.interactions = append(h.interactions, i)
	h.mu.Unlock()
}

func (h *recordingHandler) OnEvent(_ context.Context, name string, _ json.RawMessage) {
	h.mu.Lock()
	h.others = append(h.others, name)
	h.mu.Unlock()
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ready), len(h.interactions), len(h.others)
}

func newTestConnection(ft *fakeTransport, handler Handler, maxMissed int) *Connection {
	identify := Identify{IdentifyData{Token: "tok", Intents: 513, Properties: ConnectionProperties{Device: "Cheese"}}}
	return newConnection(ft, &Sequence{}, connectionConfig{
		handshake:     identify,
		handler:       handler,
		maxMissedAcks: maxMissed,
		logger:        discardLogger(),
	})
}

func startConnection(t *testing.T, c *Connection) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("connection did not stop")
		return nil
	}
}

// gatewayServer is a scripted websocket gateway. Each accepted connection
// plays the next script and records every frame the client sends.
type gatewayServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	scripts [][]string
	conns   int
	queries []string

	frames chan recordedFrame
}

type recordedFrame struct {
	Conn int
	sentFrame
}

func newGatewayServer(t *testing.T) *gatewayServer {
	t.Helper()
	gs := &gatewayServer{frames: make(chan recordedFrame, 256)}
	gs.srv = httptest.NewServer(http.HandlerFunc(gs.serve))
	t.Cleanup(gs.srv.Close)
	return gs
}

func (gs *gatewayServer) URL() string {
	return "ws" + strings.TrimPrefix(gs.srv.URL, "http")
}

// addSession queues the frames the next connection receives, in order.
func (gs *gatewayServer) addSession(frames ...string) {
	gs.mu.Lock()
	gs.scripts = append(gs.scripts, frames)
	gs.mu.Unlock()
}

func (gs *gatewayServer) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	gs.mu.Lock()
	index := gs.conns
	gs.conns++
	gs.queries = append(gs.queries, r.URL.RawQuery)
	var script []string
	if index < len(gs.scripts) {
		script = gs.scripts[index]
	}
	gs.mu.Unlock()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var frame sentFrame
			if json.Unmarshal(data, &frame) == nil {
				gs.frames <- recordedFrame{Conn: index, sentFrame: frame}
			}
		}
	}()

	for _, frame := range script {
		if text, ok := strings.CutPrefix(frame, "close:"); ok {
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4004, text))
			continue
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
	}
	<-readerDone
}

func (gs *gatewayServer) connections() int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.conns
}

func (gs *gatewayServer) next(t *testing.T) recordedFrame {
	t.Helper()
	select {
	case f := <-gs.frames:
		return f
	case <-time.After(waitFor):
		t.Fatal("gateway received no frame")
		return recordedFrame{}
	}
}

// restServer answers GET /gateway/bot with gatewayURL and counts requests.
type restServer struct {
	srv      *httptest.Server
	metadata atomic.Int32
	mux      *http.ServeMux
}

func newRESTServer(t *testing.T, gatewayURL string) *restServer {
	t.Helper()
	rs := &restServer{mux: http.NewServeMux()}
	rs.mux.HandleFunc("/gateway/bot", func(w http.ResponseWriter, r *http.Request) {
		rs.metadata.Add(1)
		if r.Header.Get("Authorization") != "Bot tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "401: Unauthorized", "code": 0}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"` + gatewayURL + `","shards":1,"session_start_limit":{"total":1000,"remaining":999,"reset_after":14400000,"max_concurrency":1}}`))
	})
	rs.srv = httptest.NewServer(rs.mux)
	t.Cleanup(rs.srv.Close)
	return rs
}

// nextFrom returns the next frame sent on connection conn, skipping others.
func (gs *gatewayServer) nextFrom(t *testing.T, conn int) sentFrame {
	t.Helper()
	for {
		f := gs.next(t)
		if f.Conn == conn {
			return f.sentFrame
		}
	}
}
