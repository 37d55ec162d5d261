// Package ids mints the opaque identifiers used throughout the channel
// engine: channel ids, invite codes, bot ids, and rejoin tokens.
package ids

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewChannelID returns a fresh "chn_<rand>" identifier.
func NewChannelID() string {
	return "chn_" + shortEntropy()
}

// NewInviteCode returns a fresh "inv_<rand>" identifier.
func NewInviteCode() string {
	return "inv_" + shortEntropy()
}

// NewRejoinToken returns an opaque, unguessable bearer token.
func NewRejoinToken() string {
	return urlToken(32)
}

// BotID builds the "bot_<name>_<index>" id for the index-th bot of the
// given declared name attached to a channel (1-based index).
func BotID(name string, index int) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, cleaned)
	if cleaned == "" {
		cleaned = "bot"
	}
	return fmt.Sprintf("bot_%s_%d", cleaned, index)
}

// shortEntropy returns a UUID with hyphens stripped, used as the random
// suffix of channel and invite ids.
func shortEntropy() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// urlToken returns n bytes of crypto/rand entropy, base64url-encoded
// without padding — the same shape as the original's
// secrets.token_urlsafe(n).
func urlToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// there is no safe fallback, so surface it loudly rather than mint
		// a predictable token.
		panic("ids: failed to read random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
