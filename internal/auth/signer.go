// Package auth signs REST requests for the futures API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"kumexfeed/pkg/core"
)

// Header names of the signed request.
const (
	HeaderKey        = "KC-API-KEY"
	HeaderSign       = "KC-API-SIGN"
	HeaderTimestamp  = "KC-API-TIMESTAMP"
	HeaderPassphrase = "KC-API-PASSPHRASE"
	HeaderKeyVersion = "KC-API-KEY-VERSION"
)

// KeyVersion 2 signs the passphrase with the secret instead of sending it in clear.
const KeyVersion = "2"

// Signer produces KC-API-* headers from one set of credentials.
// It implements core.Signer and is safe for concurrent use.
type Signer struct {
	creds  core.Credentials
	now    func() time.Time
	logger zerolog.Logger
}

// NewSigner returns a Signer for creds. All three credential fields are required.
func NewSigner(creds core.Credentials) (*Signer, error) {
	if creds.APIKey == "" || creds.SecretKey == "" || creds.Passphrase == "" {
		return nil, core.ErrNoCredentials
	}
	return &Signer{
		creds:  creds,
		now:    time.Now,
		logger: zerolog.Nop(),
	}, nil
}

// SetLogger configures the logger for the signer.
func (s *Signer) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Sign implements core.Signer. The prehash string is
// timestamp + method + path + body.
func (s *Signer) Sign(path, method string, body []byte) (*core.SignContext, error) {
	if path == "" || method == "" {
		return nil, fmt.Errorf("sign: path and method are required")
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	prehash := ts + method + path + string(body)

	s.logger.Debug().
		Str("key", maskKey(s.creds.APIKey)).
		Str("method", method).
		Str("path", path).
		Msg("signing request")

	return core.NewSignContext().
		SetHeader(HeaderKey, s.creds.APIKey).
		SetHeader(HeaderSign, signHMAC(prehash, s.creds.SecretKey)).
		SetHeader(HeaderTimestamp, ts).
		SetHeader(HeaderPassphrase, signHMAC(s.creds.Passphrase, s.creds.SecretKey)).
		SetHeader(HeaderKeyVersion, KeyVersion), nil
}

func (s *Signer) String() string {
	return fmt.Sprintf("Signer{Key:%s}", maskKey(s.creds.APIKey))
}

func signHMAC(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
