// Package safeurl validates configured URLs and scrubs them for logging.
package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Rejects file://, ftp:// and similar for mirror and feed overrides.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return s == "http" || s == "https"
}

// IsProxyURL reports whether u is usable as an outbound proxy.
func IsProxyURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "socks5", "socks5h":
		return true
	}
	return false
}

// sensitive query keys are blanked by Redact.
var sensitive = map[string]bool{
	"sid":           true,
	"deviceid":      true,
	"advertisingid": true,
	"token":         true,
	"jwt":           true,
}

// Redact drops userinfo and blanks session/device query values so a URL can be
// logged. Unparseable input is returned as "<invalid url>".
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.User != nil {
		u.User = url.User("xxx")
	}
	q := u.Query()
	changed := false
	for k := range q {
		if sensitive[strings.ToLower(k)] && q.Get(k) != "" {
			q.Set(k, "xxx")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
