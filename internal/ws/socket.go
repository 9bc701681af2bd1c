// Package ws holds the websocket plumbing under the feed manager: the
// connection state machine and a gws-backed dialer.
package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
)

// Socket is the write side of an established websocket.
type Socket interface {
	// WriteText sends a text data frame.
	WriteText(data []byte) error
	// WritePing sends a ping control frame.
	WritePing(payload []byte) error
	// WritePong sends a pong control frame.
	WritePong(payload []byte) error
	// Close starts a normal closure. Events.OnClose follows with a nil error.
	Close() error
}

// Events receives the lifecycle callbacks of one connection. Callbacks for
// a connection are invoked sequentially from its read loop.
type Events interface {
	OnOpen(s Socket)
	// OnClose gets a nil error for a normal (1000) closure from either side.
	OnClose(s Socket, err error)
	OnPing(s Socket, payload []byte)
	OnPong(s Socket, payload []byte)
	OnMessage(s Socket, data []byte)
}

// Dialer opens websocket connections. Dial returns once the handshake is
// done; every later event, OnOpen included, is delivered asynchronously.
type Dialer interface {
	Dial(ctx context.Context, url string, events Events) error
}

// GWSDialer dials with github.com/lxzan/gws.
type GWSDialer struct {
	HandshakeTimeout time.Duration
	logger           zerolog.Logger
	wg               sync.WaitGroup
}

// NewGWSDialer returns a dialer with the given handshake timeout.
func NewGWSDialer(handshakeTimeout time.Duration) *GWSDialer {
	if handshakeTimeout == 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &GWSDialer{
		HandshakeTimeout: handshakeTimeout,
		logger:           zerolog.Nop(),
	}
}

// SetLogger configures the logger for the dialer.
func (d *GWSDialer) SetLogger(logger zerolog.Logger) {
	d.logger = logger
}

// Dial performs the handshake and starts the read loop on its own goroutine.
func (d *GWSDialer) Dial(ctx context.Context, url string, events Events) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	adapter := &gwsEvents{events: events}
	conn, _, err := gws.NewClient(adapter, &gws.ClientOption{
		Addr:             url,
		HandshakeTimeout: d.HandshakeTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	adapter.socket = &gwsSocket{conn: conn}

	d.logger.Debug().Str("url", redact(url)).Msg("websocket handshake done")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		conn.ReadLoop()
	}()
	return nil
}

// Wait blocks until every read loop started by d has returned.
func (d *GWSDialer) Wait() {
	d.wg.Wait()
}

type gwsSocket struct {
	conn *gws.Conn
}

func (s *gwsSocket) WriteText(data []byte) error {
	return s.conn.WriteMessage(gws.OpcodeText, data)
}

func (s *gwsSocket) WritePing(payload []byte) error {
	return s.conn.WritePing(payload)
}

func (s *gwsSocket) WritePong(payload []byte) error {
	return s.conn.WritePong(payload)
}

func (s *gwsSocket) Close() error {
	if err := s.conn.WriteClose(closeNormal, nil); err != nil && !errors.Is(err, gws.ErrConnClosed) {
		return fmt.Errorf("write close: %w", err)
	}
	return nil
}

type gwsEvents struct {
	events Events
	socket *gwsSocket
}

func (h *gwsEvents) OnOpen(_ *gws.Conn) {
	h.events.OnOpen(h.socket)
}

func (h *gwsEvents) OnClose(_ *gws.Conn, err error) {
	if normalClosure(err) {
		err = nil
	}
	h.events.OnClose(h.socket, err)
}

func (h *gwsEvents) OnPing(_ *gws.Conn, payload []byte) {
	h.events.OnPing(h.socket, payload)
}

func (h *gwsEvents) OnPong(_ *gws.Conn, payload []byte) {
	h.events.OnPong(h.socket, payload)
}

func (h *gwsEvents) OnMessage(_ *gws.Conn, message *gws.Message) {
	defer message.Close()

	if message.Opcode != gws.OpcodeText && message.Opcode != gws.OpcodeBinary {
		return
	}
	data := message.Bytes()
	if len(data) == 0 {
		return
	}
	// the message buffer is pooled and recycled by Close
	h.events.OnMessage(h.socket, append([]byte(nil), data...))
}

const closeNormal uint16 = 1000

// normalClosure reports whether err carries close code 1000. gws reports a
// peer close as *gws.CloseError and a local one as its internal status code.
func normalClosure(err error) bool {
	var ce *gws.CloseError
	if errors.As(err, &ce) {
		return ce.Code == closeNormal
	}
	var sc interface{ Uint16() uint16 }
	if errors.As(err, &sc) {
		return sc.Uint16() == closeNormal
	}
	return false
}

// redact strips the query string, which carries the connection token.
func redact(url string) string {
	base, _, _ := strings.Cut(url, "?")
	return base
}
