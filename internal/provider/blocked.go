package provider

import (
	"errors"
	"strings"
)

// ErrBlocked means an upstream answered with an anti-bot challenge page
// instead of content.
var ErrBlocked = errors.New("blocked by anti-bot challenge")

// challengePage reports whether body looks like a Cloudflare (or similar)
// interstitial. Only definitive markers count; the word "cloudflare" alone
// shows up on plenty of ordinary pages.
func challengePage(body string) bool {
	if len(body) > 64<<10 {
		body = body[:64<<10]
	}
	b := strings.ToLower(body)
	return strings.Contains(b, "checking your browser") ||
		strings.Contains(b, "cf-browser-verification") ||
		strings.Contains(b, "cf-chl-") ||
		strings.Contains(b, "just a moment...") ||
		(strings.Contains(b, "ray id") && strings.Contains(b, "cloudflare"))
}
