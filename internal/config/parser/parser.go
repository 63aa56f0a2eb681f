// Package parser reads and writes shadowsocks links.
package parser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

// Entry is one decoded line of a link list.
type Entry struct {
	Line    int
	URI     string
	Profile models.Profile
	Err     error
}

// DecodeList extracts ss:// links from content. Content may be a plain
// newline separated list or a base64-wrapped one, as served by most
// subscription endpoints. Lines with other schemes are skipped; malformed
// ss:// lines are returned with Err set.
func DecodeList(content []byte) ([]Entry, error) {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, pkgerrors.ErrImportEmpty
	}

	if !strings.Contains(text, "://") {
		decoded, err := decodeBase64(strings.Join(strings.Fields(text), ""))
		if err == nil {
			text = decoded
		}
	}

	var entries []Entry
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !HasScheme(line) {
			continue
		}
		p, err := Parse(line)
		entries = append(entries, Entry{Line: i + 1, URI: line, Profile: p, Err: err})
	}

	if len(entries) == 0 {
		return nil, pkgerrors.ErrImportEmpty
	}
	return entries, nil
}

// decodeBase64 tries the standard and URL alphabets, padded or not.
func decodeBase64(s string) (string, error) {
	s = strings.TrimSpace(s)
	decoders := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range decoders {
		if decoded, err := enc.DecodeString(s); err == nil {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("failed to decode base64")
}
