package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"kumexfeed/internal/transport"
	"kumexfeed/pkg/core"
	"kumexfeed/pkg/topics"
)

// Token endpoints of the REST API.
const (
	PublicTokenPath  = "/api/v1/bullet-public"
	PrivateTokenPath = "/api/v1/bullet-private"
)

// tokenRequestBody is both sent and signed; the two must stay identical.
var tokenRequestBody = []byte("{}")

// InstanceServer is one websocket server offered by the token endpoint.
type InstanceServer struct {
	Endpoint     string `json:"endpoint"`
	Encrypt      bool   `json:"encrypt"`
	Protocol     string `json:"protocol"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// Token is the payload of a successful token request.
type Token struct {
	Token           string           `json:"token"`
	InstanceServers []InstanceServer `json:"instanceServers"`
}

type tokenEnvelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data *Token `json:"data"`
}

// Poster sends a JSON POST request. *transport.Client implements it.
type Poster interface {
	Post(ctx context.Context, path string, body []byte, headers map[string]string) (*transport.Response, error)
}

// TokenFetcher exchanges REST credentials for a short-lived connection token.
type TokenFetcher struct {
	http   Poster
	logger zerolog.Logger
}

// NewTokenFetcher returns a fetcher issuing requests through http.
func NewTokenFetcher(http Poster) *TokenFetcher {
	return &TokenFetcher{http: http, logger: zerolog.Nop()}
}

// SetLogger configures the logger for the fetcher.
func (f *TokenFetcher) SetLogger(logger zerolog.Logger) {
	f.logger = logger
}

// Fetch requests a token of the given kind. Private tokens need sign.
// It issues exactly one HTTP call and never retries.
func (f *TokenFetcher) Fetch(ctx context.Context, kind topics.Classification, sign *core.SignContext) (*Token, error) {
	path := PublicTokenPath
	var headers map[string]string
	if kind.IsPrivate() {
		if sign == nil {
			return nil, core.NewFeedError(core.ErrorTypeTokenRequest, "private token requires a sign context", core.ErrNoCredentials)
		}
		path = PrivateTokenPath
		// the client may keep the map past this call
		headers = sign.Clone().Headers
	}

	resp, err := f.http.Post(ctx, path, tokenRequestBody, headers)
	if err != nil {
		return nil, core.NewFeedError(core.ErrorTypeTokenRequest, "request "+path, err)
	}

	var env tokenEnvelope
	decodeErr := resp.Unmarshal(&env)

	if !resp.IsSuccess() || (decodeErr == nil && env.Code != string(core.CodeSuccess)) {
		msg := env.Msg
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, core.NewFeedError(core.ErrorTypeTokenRequest, path+" rejected: "+msg, nil).
			WithStatus(resp.StatusCode, env.Code)
	}
	if decodeErr != nil {
		return nil, core.NewFeedError(core.ErrorTypeTokenRequest, "decode "+path, decodeErr)
	}
	if env.Data == nil {
		return nil, core.NewFeedError(core.ErrorTypeTokenRequest, path+" returned no server list", nil).
			WithStatus(resp.StatusCode, env.Code)
	}
	if env.Data.Token == "" {
		return nil, core.NewFeedError(core.ErrorTypeTokenRequest, path+" returned an empty token", nil).
			WithStatus(resp.StatusCode, env.Code)
	}

	f.logger.Debug().
		Str("kind", kind.String()).
		Int("servers", len(env.Data.InstanceServers)).
		Msg("connection token received")

	return env.Data, nil
}

// Resolver turns a token into the URI of one websocket server.
type Resolver struct {
	fetcher *TokenFetcher
	now     func() time.Time
}

// NewResolver returns a Resolver backed by fetcher.
func NewResolver(fetcher *TokenFetcher) *Resolver {
	return &Resolver{fetcher: fetcher, now: time.Now}
}

// Resolve fetches a token and builds
// <endpoint>?token=<token>&connectId=<id> for the first offered server.
func (r *Resolver) Resolve(ctx context.Context, kind topics.Classification, env core.Environment, sign *core.SignContext) (string, error) {
	tok, err := r.fetcher.Fetch(ctx, kind, sign)
	if err != nil {
		return "", err
	}

	if len(tok.InstanceServers) == 0 {
		return "", core.NewFeedError(core.ErrorTypeNoServerAvailable, "token response lists no instance server", core.ErrNoServerAvailable)
	}
	server := tok.InstanceServers[0]
	connectID := strconv.FormatInt(r.now().UnixMilli(), 10)

	if !env.Valid() {
		return "", core.NewFeedError(core.ErrorTypeInvalidRequest, "unknown environment "+env.String(), nil)
	}
	// sandbox and live share one URI shape
	return fmt.Sprintf("%s?token=%s&connectId=%s", server.Endpoint, tok.Token, connectID), nil
}
