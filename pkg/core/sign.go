package core

import "maps"

// SignContext carries the authentication headers produced for one REST call.
type SignContext struct {
	Headers map[string]string `json:"headers"`
}

// NewSignContext returns an empty SignContext.
func NewSignContext() *SignContext {
	return &SignContext{Headers: make(map[string]string)}
}

// SetHeader adds a header and returns the context for chaining.
func (s *SignContext) SetHeader(key, value string) *SignContext {
	if s.Headers == nil {
		s.Headers = make(map[string]string)
	}
	s.Headers[key] = value
	return s
}

// Clone returns a copy safe to mutate.
func (s *SignContext) Clone() *SignContext {
	if s == nil {
		return nil
	}
	return &SignContext{Headers: maps.Clone(s.Headers)}
}

// Signer produces authentication material for a REST request.
type Signer interface {
	// Sign returns the headers authenticating a request with the given path,
	// HTTP method and raw body.
	Sign(path, method string, body []byte) (*SignContext, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(path, method string, body []byte) (*SignContext, error)

// Sign calls f.
func (f SignerFunc) Sign(path, method string, body []byte) (*SignContext, error) {
	return f(path, method, body)
}
