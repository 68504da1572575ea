// Package fetch performs the GETs every driver needs: retried HTTP, optional
// decompression, and tolerant JSON/text decoding.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/imroc/req/v3"

	"github.com/aphrodite747/app-m3u-generator/internal/safeurl"
)

var (
	// ErrUnavailable means the source could not be reached or kept failing
	// after retries. Callers skip the source.
	ErrUnavailable = errors.New("source unavailable")
	// ErrDecode means the body arrived but could not be parsed.
	ErrDecode = errors.New("decode failed")
)

// Options are per-request settings.
type Options struct {
	Compression Compression
	// Headers override the client's common headers (Referer, Origin, ...).
	Headers map[string]string
}

// Fetcher wraps a configured req client. The client owns timeout, user agent
// and the retry policy.
type Fetcher struct {
	client *req.Client
	Debug  bool
}

// New returns a Fetcher using c.
func New(c *req.Client) *Fetcher {
	return &Fetcher{client: c}
}

// Get downloads url and returns the (decompressed) body.
func (f *Fetcher) Get(ctx context.Context, url string, opts Options) ([]byte, error) {
	r := f.client.R().SetContext(ctx)
	if len(opts.Headers) > 0 {
		r.SetHeaders(opts.Headers)
	}
	resp, err := r.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", safeurl.Redact(url), err, ErrUnavailable)
	}
	code := resp.GetStatusCode()
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("fetch %s: status %d: %w", safeurl.Redact(url), code, ErrUnavailable)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %v: %w", safeurl.Redact(url), err, ErrUnavailable)
	}
	if f.Debug {
		log.Printf("fetch: %s -> %d (%d bytes)", safeurl.Redact(url), code, len(body))
	}
	return Decompress(body, opts.Compression), nil
}

// GetText returns the body as UTF-8 text with invalid sequences dropped.
func (f *Fetcher) GetText(ctx context.Context, url string, opts Options) (string, error) {
	body, err := f.Get(ctx, url, opts)
	if err != nil {
		return "", err
	}
	return DecodeUTF8(body), nil
}

// GetJSON decodes the body into v. A parse failure wraps ErrDecode.
func (f *Fetcher) GetJSON(ctx context.Context, url string, opts Options, v any) error {
	text, err := f.GetText(ctx, url, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("fetch %s: json: %v: %w", safeurl.Redact(url), err, ErrDecode)
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeUTF8 drops invalid UTF-8 and a leading byte order mark.
func DecodeUTF8(b []byte) string {
	b = bytes.TrimPrefix(b, utf8BOM)
	return strings.ToValidUTF8(string(b), "")
}
