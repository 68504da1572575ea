package httpclient

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls how many times a request is retried and how long to
// wait between attempts. One policy is built from config and injected into
// every client; nothing else in the program sleeps on failure.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt (0 = no retry).
	MaxRetries int
	// Delay is the fixed wait after a network error or 5xx.
	Delay time.Duration
	// RateLimitDelay is multiplied by the attempt number on 429 Too Many Requests.
	RateLimitDelay time.Duration
	// Jitter adds a random [0, Jitter) to rate-limit waits. 0 disables it.
	Jitter time.Duration
	// MaxRateLimitWait caps any 429 wait, including a server-sent Retry-After.
	MaxRateLimitWait time.Duration
}

// DefaultRetryPolicy mirrors a requests/urllib3 setup of total=5, backoff_factor=2
// with 429 and 5xx in the status force list.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:       5,
	Delay:            2 * time.Second,
	RateLimitDelay:   5 * time.Second,
	Jitter:           1 * time.Second,
	MaxRateLimitWait: 60 * time.Second,
}

// ShouldRetry reports whether an attempt that ended with status code and err
// is worth repeating. 4xx other than 429 are never retried.
func ShouldRetry(code int, err error) bool {
	if err != nil {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// Backoff returns how long to wait before retry number attempt (1-based).
// 429 waits attempt*RateLimitDelay (+jitter); a larger Retry-After wins, capped
// at MaxRateLimitWait. Everything else waits the fixed Delay.
func (p RetryPolicy) Backoff(attempt, code int, retryAfter string) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if code != http.StatusTooManyRequests {
		return p.Delay
	}
	wait := time.Duration(attempt) * p.RateLimitDelay
	if p.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	if ra, ok := parseRetryAfter(retryAfter, p.capOrDefault()); ok && ra > wait {
		wait = ra
	}
	if max := p.capOrDefault(); wait > max {
		wait = max
	}
	return wait
}

func (p RetryPolicy) capOrDefault() time.Duration {
	if p.MaxRateLimitWait <= 0 {
		return DefaultRetryPolicy.MaxRateLimitWait
	}
	return p.MaxRateLimitWait
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
// ok is false when the header is absent or unparseable.
func parseRetryAfter(s string, max time.Duration) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max, true
		}
		return d, true
	}
	// RFC 1123 date
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 0, false
	}
	until := time.Until(t)
	if until <= 0 {
		return 0, true
	}
	if until > max {
		return max, true
	}
	return until, true
}
