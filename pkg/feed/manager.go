package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"kumexfeed/internal/auth"
	"kumexfeed/internal/transport"
	"kumexfeed/internal/ws"
	"kumexfeed/pkg/core"
	"kumexfeed/pkg/topics"
)

// ConnState re-exports the connection lifecycle state.
type ConnState = ws.ConnState

// Connection states.
const (
	StateConnecting = ws.StateConnecting
	StateOpen       = ws.StateOpen
	StateClosing    = ws.StateClosing
	StateClosed     = ws.StateClosed
)

// MessageHandler receives every inbound data frame of a connection.
type MessageHandler func(data []byte)

// CloseHandler is invoked once when a connection closes.
type CloseHandler func()

// Tunnel asks for a multiplexed sub-channel on a shared connection. When
// the connection already exists, the request only sends a frame on it.
type Tunnel struct {
	TunnelID    string `json:"tunnelId" validate:"required_with=OpenTunnel CloseTunnel"`
	OpenTunnel  bool   `json:"openTunnel"`
	CloseTunnel bool   `json:"closeTunnel"`
}

// Request describes what Open should connect to.
type Request struct {
	// Topic is the registry key and, without Endpoint, the static table name.
	Topic   string   `validate:"required"`
	Symbols []string `validate:"omitempty,dive,required"`
	// Endpoint overrides the static table with an explicit channel path.
	Endpoint string
	// Private marks an explicit Endpoint as requiring a signed token.
	Private bool
	// Multiplex routes the request through an existing connection when set.
	Multiplex *Tunnel
}

func (r Request) descriptor() (topics.Descriptor, error) {
	return topics.Resolve(r.Topic, r.Symbols, r.Endpoint, r.Private)
}

var validate = validator.New()

// Option configures a Manager.
type Option func(*Manager)

// WithSigner replaces the signer built from the configured credentials.
func WithSigner(signer core.Signer) Option {
	return func(m *Manager) {
		m.signer = signer
	}
}

// WithPoster replaces the HTTP client used for token requests.
func WithPoster(p Poster) Option {
	return func(m *Manager) {
		m.poster = p
	}
}

// Manager owns the live feed connections, one per topic key.
type Manager struct {
	config   *core.Config
	poster   Poster
	http     *transport.Client
	fetcher  *TokenFetcher
	resolver *Resolver
	dialer   ws.Dialer
	signer   core.Signer
	registry *registry
	logger   zerolog.Logger

	now    func() time.Time
	lastID atomic.Int64
	opens  sync.WaitGroup
	closed atomic.Bool
}

// New validates config and builds a Manager. Credentials, when present,
// are used to sign private token requests.
func New(config *core.Config, opts ...Option) (*Manager, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := &Manager{
		config:   config,
		dialer:   ws.NewGWSDialer(config.HandshakeTimeout),
		registry: newRegistry(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}

	if config.Credentials != nil {
		signer, err := auth.NewSigner(*config.Credentials)
		if err != nil {
			return nil, err
		}
		m.signer = signer
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.poster == nil {
		client, err := transport.NewClient(transport.ConfigFrom(config), m.logger)
		if err != nil {
			return nil, err
		}
		m.http = client
		m.poster = client
	}

	m.fetcher = NewTokenFetcher(m.poster)
	m.resolver = NewResolver(m.fetcher)
	return m, nil
}

// SetLogger configures the logger for the manager and its collaborators.
// The configured LogLevel is applied on top of logger.
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = m.config.Logger(logger)
	m.fetcher.SetLogger(m.logger)
	if m.http != nil {
		m.http.SetLogger(m.logger)
	}
	if d, ok := m.dialer.(*ws.GWSDialer); ok {
		d.SetLogger(m.logger)
	}
	if s, ok := m.signer.(*auth.Signer); ok {
		s.SetLogger(m.logger)
	}
}

// Open connects req in the background. onClose runs when the connection
// closes; onMessage receives its data frames. Failures are logged only.
//
// A multiplexed request routed through an already open connection keeps
// that connection's close handler; its own onClose is never called.
func (m *Manager) Open(ctx context.Context, req Request, onClose CloseHandler, onMessage MessageHandler) {
	m.opens.Add(1)
	go func() {
		defer m.opens.Done()
		c, err := m.start(ctx, req, onClose, onMessage)
		if err != nil {
			m.logger.Error().Err(err).Str("topic", req.Topic).Msg("open websocket failed")
			return
		}
		if c == nil {
			return
		}
		if err := c.awaitReady(ctx); err != nil {
			m.logger.Warn().Err(err).Str("topic", req.Topic).Msg("stopped waiting for websocket open")
		}
	}()
}

func (m *Manager) open(ctx context.Context, req Request, onClose CloseHandler, onMessage MessageHandler) error {
	_, err := m.start(ctx, req, onClose, onMessage)
	return err
}

// start runs an open up to the dial. It returns the dialed connection, or
// nil when the request was routed through an existing one.
func (m *Manager) start(ctx context.Context, req Request, onClose CloseHandler, onMessage MessageHandler) (*conn, error) {
	if m.closed.Load() {
		return nil, core.ErrManagerClosed
	}
	if err := validate.Struct(req); err != nil {
		return nil, core.NewFeedError(core.ErrorTypeInvalidRequest, "validate request", err).WithTopic(req.Topic)
	}

	desc, err := req.descriptor()
	if err != nil {
		return nil, core.NewFeedError(core.ErrorTypeInvalidRequest, "resolve topic", err).WithTopic(req.Topic)
	}

	if req.Multiplex != nil {
		if c, ok := m.registry.get(desc.Topic); ok && c.state.Load() == ws.StateOpen {
			m.logger.Debug().Str("topic", desc.Topic).Str("tunnel", req.Multiplex.TunnelID).Msg("reusing connection")
			if onClose != nil {
				m.logger.Info().Str("topic", desc.Topic).Msg("connection reused, close handler of the request is not installed")
			}
			return nil, m.subscribe(desc, onMessage, req.Multiplex)
		}
	}

	var sign *core.SignContext
	if desc.Class.IsPrivate() {
		if m.signer == nil {
			return nil, core.NewFeedError(core.ErrorTypeSigning, "private channel "+desc.Channel, core.ErrNoCredentials).WithTopic(desc.Topic)
		}
		sign, err = m.signer.Sign(PrivateTokenPath, http.MethodPost, tokenRequestBody)
		if err != nil {
			return nil, core.NewFeedError(core.ErrorTypeSigning, "sign token request", err).WithTopic(desc.Topic)
		}
	}

	url, err := m.resolver.Resolve(ctx, desc.Class, m.config.Environment, sign)
	if err != nil {
		var fe *core.FeedError
		if errors.As(err, &fe) {
			return nil, fe.WithTopic(desc.Topic)
		}
		return nil, err
	}

	m.logger.Info().Str("topic", desc.Topic).Str("class", desc.Class.String()).Msg("opening websocket")

	c := newConn(m, desc, req, onClose, onMessage)
	if err := m.dialer.Dial(ctx, url, c); err != nil {
		c.leave(ws.StateClosed)
		return nil, core.NewFeedError(core.ErrorTypeTransport, "dial", err).WithTopic(desc.Topic)
	}
	return c, nil
}

// attach registers c and closes the connection it displaces.
func (m *Manager) attach(c *conn) {
	prev := m.registry.put(c.desc.Topic, c)
	if prev == nil || prev == c {
		return
	}
	m.logger.Info().Str("topic", c.desc.Topic).Msg("replacing connection")
	if err := prev.close(); err != nil && !errors.Is(err, core.ErrNotOpen) {
		m.logger.Warn().Err(err).Str("topic", c.desc.Topic).Msg("close replaced connection failed")
	}
}

func (m *Manager) detach(c *conn) {
	if m.registry.remove(c.desc.Topic, c) {
		m.logger.Debug().Str("topic", c.desc.Topic).Msg("connection deregistered")
	}
}

// Close closes the connection of topic. Teardown completes through the
// socket's close callback.
func (m *Manager) Close(topic string) error {
	c, ok := m.registry.get(topic)
	if !ok {
		return core.NewFeedError(core.ErrorTypeConnectionMissing, "close", core.ErrConnectionMissing).WithTopic(topic)
	}
	return c.close()
}

// CloseAll stops accepting opens, waits for in-flight ones, closes every
// registered connection and waits for their read loops to exit.
func (m *Manager) CloseAll() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.opens.Wait()

	var errs []error
	for _, c := range m.registry.all() {
		if err := c.close(); err != nil && !errors.Is(err, core.ErrNotOpen) {
			errs = append(errs, fmt.Errorf("close %s: %w", c.desc.Topic, err))
		}
	}
	if d, ok := m.dialer.(*ws.GWSDialer); ok {
		d.Wait()
	}
	if m.http != nil {
		if err := m.http.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Topics returns the registered topic keys, sorted.
func (m *Manager) Topics() []string {
	return m.registry.topics()
}

// State returns the state of the connection registered under topic.
func (m *Manager) State(topic string) (ConnState, bool) {
	c, ok := m.registry.get(topic)
	if !ok {
		return StateClosed, false
	}
	return c.state.Load(), true
}

// Wait blocks until every Open call has either failed or seen its
// connection registered or closed.
func (m *Manager) Wait() {
	m.opens.Wait()
}
