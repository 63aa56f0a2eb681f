package parser

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strings"

	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

const scheme = "ss://"

// Parse decodes a shadowsocks link into a profile. Two forms are accepted:
//
//	ss://base64(method:password@host:port)[#tag]          legacy
//	ss://base64url(method:password)@host:port[/?...][#tag] SIP002
//
// The tag, if any, becomes the profile name. Local address, local port and
// timeout take their defaults.
func Parse(uri string) (models.Profile, error) {
	raw := strings.TrimSpace(uri)
	if !HasScheme(raw) {
		return models.Profile{}, invalid(uri, "missing ss:// scheme")
	}
	body := raw[len(scheme):]

	tag := ""
	if i := strings.IndexByte(body, '#'); i >= 0 {
		tag, _ = url.PathUnescape(body[i+1:])
		body = body[:i]
	}

	var method, password, hostPort string
	if at := strings.LastIndexByte(body, '@'); at >= 0 {
		// SIP002: plugin options after the host are not used by any backend
		// argument list and are dropped.
		userinfo := body[:at]
		hostPort = body[at+1:]
		if i := strings.IndexAny(hostPort, "/?"); i >= 0 {
			hostPort = hostPort[:i]
		}

		creds, err := decodeUserinfo(userinfo)
		if err != nil {
			return models.Profile{}, &pkgerrors.URIError{URI: uri, Err: err}
		}
		method, password, err = splitCredentials(creds)
		if err != nil {
			return models.Profile{}, &pkgerrors.URIError{URI: uri, Err: err}
		}
	} else {
		decoded, err := decodeBase64(body)
		if err != nil {
			return models.Profile{}, &pkgerrors.URIError{URI: uri, Err: err}
		}
		at := strings.LastIndexByte(decoded, '@')
		if at < 0 {
			return models.Profile{}, invalid(uri, "payload is not method:password@host:port")
		}
		hostPort = decoded[at+1:]
		method, password, err = splitCredentials(decoded[:at])
		if err != nil {
			return models.Profile{}, &pkgerrors.URIError{URI: uri, Err: err}
		}
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return models.Profile{}, &pkgerrors.URIError{URI: uri, Err: err}
	}
	if host == "" {
		return models.Profile{}, invalid(uri, "empty server")
	}
	if !models.ValidPort(port) {
		return models.Profile{}, invalid(uri, fmt.Sprintf("invalid port %q", port))
	}

	p := models.NewProfile(tag)
	p.Server = host
	p.ServerPort = port
	p.Method = strings.ToLower(method)
	p.Password = password
	return p, nil
}

// Encode renders p as a SIP002 link with the profile name as tag.
func Encode(p models.Profile) string {
	userinfo := base64.RawURLEncoding.EncodeToString([]byte(p.Method + ":" + p.Password))
	uri := scheme + userinfo + "@" + net.JoinHostPort(p.Server, p.ServerPort)
	if p.Name != "" {
		uri += "#" + url.PathEscape(p.Name)
	}
	return uri
}

// EncodeLegacy renders p in the fully base64-encoded form understood by
// older clients.
func EncodeLegacy(p models.Profile) string {
	payload := fmt.Sprintf("%s:%s@%s", p.Method, p.Password, net.JoinHostPort(p.Server, p.ServerPort))
	uri := scheme + base64.StdEncoding.EncodeToString([]byte(payload))
	if p.Name != "" {
		uri += "#" + url.PathEscape(p.Name)
	}
	return uri
}

// HasScheme reports whether s starts with ss:// (case-insensitive).
func HasScheme(s string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

func decodeUserinfo(userinfo string) (string, error) {
	if decoded, err := decodeBase64(userinfo); err == nil && strings.Contains(decoded, ":") {
		return decoded, nil
	}
	// 2022 ciphers put percent-encoded method:password in the userinfo.
	plain, err := url.PathUnescape(userinfo)
	if err != nil || !strings.Contains(plain, ":") {
		return "", fmt.Errorf("userinfo is neither base64 nor method:password")
	}
	return plain, nil
}

func splitCredentials(s string) (method, password string, err error) {
	method, password, ok := strings.Cut(s, ":")
	if !ok || method == "" {
		return "", "", fmt.Errorf("credentials are not method:password")
	}
	return method, password, nil
}

func invalid(uri, reason string) error {
	return &pkgerrors.URIError{URI: uri, Err: fmt.Errorf("%s", reason)}
}
