package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a feed error.
type ErrorType int

// Error type constants categorize failures of the connection lifecycle.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTokenRequest indicates the connection token endpoint failed.
	ErrorTypeTokenRequest
	// ErrorTypeNoServerAvailable indicates the token response offered no instance server.
	ErrorTypeNoServerAvailable
	// ErrorTypeSendFailure indicates a control frame could not be written.
	ErrorTypeSendFailure
	// ErrorTypeConnectionMissing indicates no connection is registered for a topic.
	ErrorTypeConnectionMissing
	// ErrorTypeInvalidRequest indicates the caller's request was rejected before any I/O.
	ErrorTypeInvalidRequest
	// ErrorTypeSigning indicates the request signer failed.
	ErrorTypeSigning
	// ErrorTypeTransport indicates the websocket could not be established.
	ErrorTypeTransport
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"TOKEN_REQUEST",
		"NO_SERVER_AVAILABLE",
		"SEND_FAILURE",
		"CONNECTION_MISSING",
		"INVALID_REQUEST",
		"SIGNING",
		"TRANSPORT",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrNoServerAvailable is returned when the token response lists no instance server.
	ErrNoServerAvailable = errors.New("no websocket servers available")
	// ErrConnectionMissing is returned when no connection is registered for a topic.
	ErrConnectionMissing = errors.New("no connection for topic")
	// ErrNoCredentials is returned when a private channel is requested without credentials.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrNotOpen is returned when writing to a connection that is not open.
	ErrNotOpen = errors.New("connection not open")
	// ErrManagerClosed is returned when using a manager after CloseAll.
	ErrManagerClosed = errors.New("manager is closed")
)

// FeedError is a structured error raised by the connection lifecycle.
type FeedError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// Topic is the logical topic the operation concerned, if any.
	Topic string `json:"topic,omitempty"`
	// StatusCode is the HTTP status of the token endpoint, if any.
	StatusCode int `json:"status_code,omitempty"`
	// Code is the exchange response code, if any.
	Code string `json:"code,omitempty"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Err is the underlying cause.
	Err error `json:"-"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for FeedError.
func (e *FeedError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	switch {
	case e.Topic != "" && e.Code != "":
		return fmt.Sprintf("[%s] %s (%d/%s): %s", e.Topic, e.Type, e.StatusCode, e.Code, msg)
	case e.Topic != "":
		return fmt.Sprintf("[%s] %s: %s", e.Topic, e.Type, msg)
	case e.Code != "" || e.StatusCode != 0:
		return fmt.Sprintf("%s (%d/%s): %s", e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *FeedError) Unwrap() error {
	return e.Err
}

// WithTopic sets the topic and returns the error for chaining.
func (e *FeedError) WithTopic(topic string) *FeedError {
	e.Topic = topic
	return e
}

// WithStatus sets the HTTP status and exchange code and returns the error for chaining.
func (e *FeedError) WithStatus(status int, code string) *FeedError {
	e.StatusCode = status
	e.Code = code
	return e
}

// NewFeedError creates a FeedError. The timestamp is set to the current time.
func NewFeedError(errorType ErrorType, message string, cause error) *FeedError {
	return &FeedError{
		Type:      errorType,
		Message:   message,
		Err:       cause,
		Timestamp: time.Now(),
	}
}

func isType(err error, t ErrorType) bool {
	var e *FeedError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsTokenRequestError reports whether err is a token endpoint failure.
func IsTokenRequestError(err error) bool {
	return isType(err, ErrorTypeTokenRequest)
}

// IsNoServerAvailableError reports whether err means no instance server was offered.
func IsNoServerAvailableError(err error) bool {
	return isType(err, ErrorTypeNoServerAvailable) || errors.Is(err, ErrNoServerAvailable)
}

// IsSendFailure reports whether err is a failed control frame write.
func IsSendFailure(err error) bool {
	return isType(err, ErrorTypeSendFailure)
}

// IsConnectionMissing reports whether err means the topic has no connection.
func IsConnectionMissing(err error) bool {
	return isType(err, ErrorTypeConnectionMissing) || errors.Is(err, ErrConnectionMissing)
}
