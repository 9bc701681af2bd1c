package core

import "errors"

// ErrorCode represents an exchange-specific response code.
type ErrorCode string

// Response codes returned by the exchange REST envelope.
const (
	// CodeSuccess is the envelope code of a successful call.
	CodeSuccess ErrorCode = "200000"
	// CodeUnauthorized is returned for invalid API keys or signatures.
	CodeUnauthorized ErrorCode = "400003"
)

// IsErrorCode checks whether err carries the given exchange response code.
func IsErrorCode(err error, code ErrorCode) bool {
	var fe *FeedError
	if errors.As(err, &fe) {
		return ErrorCode(fe.Code) == code
	}
	return false
}
