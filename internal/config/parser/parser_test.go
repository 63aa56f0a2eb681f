package parser

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

func TestParseLegacy(t *testing.T) {
	p, err := Parse("ss://YWVzLTI1Ni1jZmI6cGFzc3dvcmRAMS4yLjMuNDo4Mzg4")
	require.NoError(t, err)

	assert.Equal(t, "aes-256-cfb", p.Method)
	assert.Equal(t, "password", p.Password)
	assert.Equal(t, "1.2.3.4", p.Server)
	assert.Equal(t, "8388", p.ServerPort)
	assert.Equal(t, models.DefaultLocalAddr, p.LocalAddr)
	assert.Equal(t, models.DefaultLocalPort, p.LocalPort)
	assert.Equal(t, models.DefaultTimeout, p.Timeout)
	assert.Empty(t, p.Name)
}

func TestParseLegacyWithTagAndAtInPassword(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("chacha20-ietf-poly1305:p@ss:word@example.com:443"))
	p, err := Parse("ss://" + payload + "#My%20Server")
	require.NoError(t, err)

	assert.Equal(t, "chacha20-ietf-poly1305", p.Method)
	assert.Equal(t, "p@ss:word", p.Password)
	assert.Equal(t, "example.com", p.Server)
	assert.Equal(t, "443", p.ServerPort)
	assert.Equal(t, "My Server", p.Name)
}

func TestParseSIP002(t *testing.T) {
	userinfo := base64.RawURLEncoding.EncodeToString([]byte("aes-128-gcm:test"))
	p, err := Parse("ss://" + userinfo + "@192.168.100.1:8888/?plugin=obfs-local#Example")
	require.NoError(t, err)

	assert.Equal(t, "aes-128-gcm", p.Method)
	assert.Equal(t, "test", p.Password)
	assert.Equal(t, "192.168.100.1", p.Server)
	assert.Equal(t, "8888", p.ServerPort)
	assert.Equal(t, "Example", p.Name)
}

func TestParseSIP002IPv6AndPlainUserinfo(t *testing.T) {
	p, err := Parse("ss://2022-blake3-aes-256-gcm:abc%2Bdef@[2001:db8::1]:8388")
	require.NoError(t, err)

	assert.Equal(t, "2022-blake3-aes-256-gcm", p.Method)
	assert.Equal(t, "abc+def", p.Password)
	assert.Equal(t, "2001:db8::1", p.Server)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"wrong scheme", "vmess://abc"},
		{"not base64", "ss://!!!"},
		{"missing host", "ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-cfb:password"))},
		{"bad port", "ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-cfb:pw@1.2.3.4:70000"))},
		{"no method", "ss://" + base64.StdEncoding.EncodeToString([]byte(":pw@1.2.3.4:80"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.uri)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pkgerrors.ErrURIInvalid))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	p := models.NewProfile("tokyo 1")
	p.Server = "203.0.113.9"
	p.ServerPort = "8443"
	p.Password = "s3cr:et"
	p.Method = "aes-256-gcm"

	for _, uri := range []string{Encode(p), EncodeLegacy(p)} {
		got, err := Parse(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, p, got, uri)
	}
}

func TestDecodeList(t *testing.T) {
	good := Encode(models.Profile{Name: "a", Server: "1.1.1.1", ServerPort: "80", Method: "rc4-md5", Password: "x"})
	content := "vmess://skipped\n\n" + good + "\nss://broken\n"

	entries, err := DecodeList([]byte(content))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.NoError(t, entries[0].Err)
	assert.Equal(t, "1.1.1.1", entries[0].Profile.Server)
	assert.Equal(t, 3, entries[0].Line)
	assert.Error(t, entries[1].Err)

	wrapped := base64.StdEncoding.EncodeToString([]byte(content))
	entries, err = DecodeList([]byte(wrapped))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDecodeListEmpty(t *testing.T) {
	_, err := DecodeList([]byte("  \n"))
	assert.True(t, errors.Is(err, pkgerrors.ErrImportEmpty))

	_, err = DecodeList([]byte("trojan://x@y:1"))
	assert.True(t, errors.Is(err, pkgerrors.ErrImportEmpty))
}
