package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"kumexfeed/internal/ws"
	"kumexfeed/pkg/core"
)

type fakeSocket struct {
	mu       sync.Mutex
	events   ws.Events
	texts    [][]byte
	pongs    [][]byte
	pings    int
	closes   int
	writeErr error
}

func (s *fakeSocket) WriteText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.texts = append(s.texts, append([]byte(nil), data...))
	return nil
}

func (s *fakeSocket) WritePing([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return nil
}

func (s *fakeSocket) WritePong(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pongs = append(s.pongs, append([]byte(nil), payload...))
	return nil
}

// Close mimics gws: the close callback follows the local close.
func (s *fakeSocket) Close() error {
	s.mu.Lock()
	s.closes++
	first := s.closes == 1
	s.mu.Unlock()
	if first {
		s.events.OnClose(s, nil)
	}
	return nil
}

func (s *fakeSocket) frames(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.texts))
	for _, raw := range s.texts {
		var f map[string]any
		require.NoError(t, sonic.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func (s *fakeSocket) frameTypes(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, f := range s.frames(t) {
		out = append(out, f["type"].(string))
	}
	return out
}

func (s *fakeSocket) pingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

func (s *fakeSocket) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeDialer hands out fakeSockets and opens them synchronously.
type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	sockets []*fakeSocket
	err     error
	noOpen  bool
	// async delivers OnOpen from another goroutine after Dial returns.
	async bool
}

func (d *fakeDialer) Dial(ctx context.Context, url string, events ws.Events) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.err != nil {
		return d.err
	}

	s := &fakeSocket{events: events}
	d.mu.Lock()
	d.urls = append(d.urls, url)
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()

	switch {
	case d.noOpen:
	case d.async:
		go func() {
			time.Sleep(20 * time.Millisecond)
			events.OnOpen(s)
		}()
	default:
		events.OnOpen(s)
	}
	return nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

type tokenRequest struct {
	Path   string
	Header http.Header
	Body   string
}

// tokenServer serves the bullet endpoints with a canned reply.
type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []tokenRequest
	status   int
	reply    string
}

const okReply = `{"code":"200000","data":{"token":"abc","instanceServers":[` +
	`{"endpoint":"wss://ws-api-futures.example.com/endpoint","encrypt":true,"protocol":"websocket","pingInterval":18000,"pingTimeout":10000}]}}`

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{status: http.StatusOK, reply: okReply}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, tokenRequest{Path: r.URL.Path, Header: r.Header.Clone(), Body: string(body)})
		status, reply := ts.status, ts.reply
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) respond(status int, reply string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = status
	ts.reply = reply
}

func (ts *tokenServer) received() []tokenRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]tokenRequest(nil), ts.requests...)
}

var testCredentials = &core.Credentials{APIKey: "key", SecretKey: "secret", Passphrase: "pass"}

func newTestManager(t *testing.T, mutate func(*core.Config)) (*Manager, *fakeDialer, *tokenServer) {
	t.Helper()
	ts := newTokenServer(t)

	config := core.DefaultConfig(core.EnvironmentSandbox).WithBaseURL(ts.URL)
	if mutate != nil {
		mutate(config)
	}

	m, err := New(config)
	require.NoError(t, err)

	d := &fakeDialer{}
	m.dialer = d
	t.Cleanup(func() { _ = m.CloseAll() })
	return m, d, ts
}

// messages collects handler invocations.
type messages struct {
	mu   sync.Mutex
	data []string
}

func (r *messages) handle(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, string(data))
}

func (r *messages) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.data...)
}

// logBuffer is a goroutine safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
