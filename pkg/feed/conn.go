package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kumexfeed/internal/ws"
	"kumexfeed/pkg/core"
	"kumexfeed/pkg/topics"
)

// conn is one websocket connection bound to a topic key. It receives the
// socket callbacks and owns the heartbeat.
type conn struct {
	manager *Manager
	desc    topics.Descriptor
	req     Request
	onClose CloseHandler
	logger  zerolog.Logger

	state     ws.State
	ready     chan struct{}
	readyOnce sync.Once

	mu         sync.Mutex
	socket     ws.Socket
	handler    MessageHandler
	subscribed bool
	stopPing   chan struct{}
	pingDone   chan struct{}
}

func newConn(m *Manager, desc topics.Descriptor, req Request, onClose CloseHandler, onMessage MessageHandler) *conn {
	return &conn{
		manager: m,
		desc:    desc,
		req:     req,
		onClose: onClose,
		handler: onMessage,
		ready:   make(chan struct{}),
		logger:  m.logger.With().Str("topic", desc.Topic).Logger(),
	}
}

// OnOpen registers the connection, starts the heartbeat and subscribes.
func (c *conn) OnOpen(s ws.Socket) {
	defer c.markReady()

	c.mu.Lock()
	c.socket = s
	if _, ok := c.state.Transition(ws.StateOpen); !ok {
		c.mu.Unlock()
		return
	}
	c.startHeartbeat(c.manager.config.PingInterval)
	handler := c.handler
	c.mu.Unlock()

	c.logger.Info().Str("channel", c.desc.Channel).Msg("websocket connected")

	c.manager.attach(c)

	if err := c.manager.subscribe(c.desc, handler, c.req.Multiplex); err != nil {
		c.logger.Error().Err(err).Msg("subscribe on open failed")
	}
}

// OnClose tears the connection down. Repeated closes are ignored.
func (c *conn) OnClose(_ ws.Socket, err error) {
	defer c.markReady()

	if !c.leave(ws.StateClosed) {
		return
	}

	if err != nil {
		c.logger.Warn().Err(err).Msg("websocket disconnected")
	} else {
		c.logger.Info().Msg("websocket disconnected")
	}

	c.manager.detach(c)

	if c.onClose != nil {
		c.onClose()
	}
}

// OnPing answers a server ping with a pong carrying the same payload.
func (c *conn) OnPing(s ws.Socket, payload []byte) {
	if err := s.WritePong(payload); err != nil {
		c.logger.Error().Err(err).Msg("write pong failed")
	}
}

// OnPong ignores pongs; any inbound frame proves liveness.
func (c *conn) OnPong(ws.Socket, []byte) {}

// OnMessage forwards a data frame to the current handler.
func (c *conn) OnMessage(_ ws.Socket, data []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()

	if h != nil {
		h(data)
	}
}

func (c *conn) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// awaitReady blocks until the connection was registered or closed.
func (c *conn) awaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// leave moves out of the current state. The heartbeat is stopped on the one
// transition that leaves Open.
func (c *conn) leave(to ws.ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	from, ok := c.state.Transition(to)
	if ok && from == ws.StateOpen && c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	return ok
}

// close starts a local close; the socket reports back through OnClose.
func (c *conn) close() error {
	if !c.leave(ws.StateClosing) {
		return core.ErrNotOpen
	}

	c.mu.Lock()
	s := c.socket
	c.mu.Unlock()

	c.logger.Debug().Msg("closing websocket")
	return s.Close()
}

// send encodes and writes a control frame while the connection is open.
func (c *conn) send(frame controlFrame) error {
	data, err := frame.encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Load() != ws.StateOpen {
		return core.ErrNotOpen
	}

	c.logger.Debug().Str("type", frame.Type).Str("id", frame.ID).Msg("send control frame")
	return c.socket.WriteText(data)
}

// setHandler replaces the handler slot. A nil handler keeps the current one.
func (c *conn) setHandler(h MessageHandler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *conn) setSubscribed(v bool) {
	c.mu.Lock()
	c.subscribed = v
	c.mu.Unlock()
}

func (c *conn) isSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// startHeartbeat must be called with c.mu held.
func (c *conn) startHeartbeat(interval time.Duration) {
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stopPing = stop
	c.pingDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !c.ping() {
					return
				}
			}
		}
	}()
}

// ping writes one ping frame. It reports false once the connection has left Open.
func (c *conn) ping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Load() != ws.StateOpen {
		return false
	}
	if err := c.socket.WritePing(nil); err != nil {
		c.logger.Warn().Err(err).Msg("write ping failed")
	}
	return true
}

// heartbeatDone is closed once the heartbeat goroutine has exited.
// It is nil if the connection never opened.
func (c *conn) heartbeatDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingDone
}
