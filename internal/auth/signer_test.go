package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kumexfeed/pkg/core"
)

func testCreds() core.Credentials {
	return core.Credentials{
		APIKey:     "5c2db93503aa674c74a31734",
		SecretKey:  "f03a5284-5c39-4aaa-9b20-dea10bdcf8e3",
		Passphrase: "QWIxenR0cmV6NzgK",
	}
}

func expectedSign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestNewSigner_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds core.Credentials
	}{
		{"missing_key", core.Credentials{SecretKey: "s", Passphrase: "p"}},
		{"missing_secret", core.Credentials{APIKey: "k", Passphrase: "p"}},
		{"missing_passphrase", core.Credentials{APIKey: "k", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSigner(tt.creds)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, core.ErrNoCredentials)
		})
	}
}

func TestSigner_Sign(t *testing.T) {
	creds := testCreds()
	s, err := NewSigner(creds)
	require.NoError(t, err)

	fixed := time.UnixMilli(1547015186532)
	s.now = func() time.Time { return fixed }

	sc, err := s.Sign("/api/v1/bullet-private", "POST", []byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, creds.APIKey, sc.Headers[HeaderKey])
	assert.Equal(t, "1547015186532", sc.Headers[HeaderTimestamp])
	assert.Equal(t, KeyVersion, sc.Headers[HeaderKeyVersion])
	assert.Equal(t,
		expectedSign("1547015186532POST/api/v1/bullet-private{}", creds.SecretKey),
		sc.Headers[HeaderSign])
	assert.Equal(t,
		expectedSign(creds.Passphrase, creds.SecretKey),
		sc.Headers[HeaderPassphrase])
}

func TestSigner_SignDependsOnBody(t *testing.T) {
	s, err := NewSigner(testCreds())
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1) }

	a, err := s.Sign("/api/v1/bullet-private", "POST", []byte("{}"))
	require.NoError(t, err)
	b, err := s.Sign("/api/v1/bullet-private", "POST", []byte(`{"x":1}`))
	require.NoError(t, err)

	assert.NotEqual(t, a.Headers[HeaderSign], b.Headers[HeaderSign])
	assert.Equal(t, a.Headers[HeaderPassphrase], b.Headers[HeaderPassphrase])
}

func TestSigner_SignRejectsEmptyPath(t *testing.T) {
	s, err := NewSigner(testCreds())
	require.NoError(t, err)

	_, err = s.Sign("", "POST", nil)
	assert.Error(t, err)
}

func TestSigner_ImplementsCoreSigner(t *testing.T) {
	s, err := NewSigner(testCreds())
	require.NoError(t, err)

	var _ core.Signer = s
}

func TestSigner_StringMasksKey(t *testing.T) {
	s, err := NewSigner(testCreds())
	require.NoError(t, err)

	assert.Equal(t, "Signer{Key:5c2d****1734}", s.String())
	assert.Equal(t, "****", maskKey("short"))
}
