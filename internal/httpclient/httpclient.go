package httpclient

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/net/proxy"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// RetryInfo describes one scheduled retry, passed to Options.OnRetry.
type RetryInfo struct {
	URL        string
	Attempt    int
	StatusCode int
	Err        error
}

// Options configures New.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Impersonate makes the TLS and HTTP/2 fingerprint look like Chrome.
	Impersonate bool
	// ProxyURL is socks5://, http:// or https://. Empty means direct.
	ProxyURL string
	Policy   RetryPolicy
	// Headers are sent with every request.
	Headers map[string]string
	// OnRetry is called before every retry. May be nil.
	OnRetry func(RetryInfo)
}

// New returns a req client configured with the user agent, timeout, proxy and
// retry policy from opts.
func New(opts Options) (*req.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	c := req.C()
	if opts.Impersonate {
		// Sets its own UA and headers; ours are applied on top.
		c.ImpersonateChrome()
	}
	c.SetTimeout(opts.Timeout).
		SetUserAgent(opts.UserAgent).
		DisableAutoDecode().
		SetCommonHeaders(map[string]string{
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
		})
	if len(opts.Headers) > 0 {
		c.SetCommonHeaders(opts.Headers)
	}
	if err := applyProxy(c, opts.ProxyURL, opts.Timeout); err != nil {
		return nil, err
	}

	policy := opts.Policy
	c.SetCommonRetryCount(policy.MaxRetries).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			return ShouldRetry(statusOf(resp), err)
		}).
		SetCommonRetryInterval(func(resp *req.Response, attempt int) time.Duration {
			if resp == nil {
				return policy.Delay
			}
			return policy.Backoff(attempt, resp.GetStatusCode(), resp.GetHeader("Retry-After"))
		})
	if opts.OnRetry != nil {
		c.AddCommonRetryHook(func(resp *req.Response, err error) {
			info := RetryInfo{StatusCode: statusOf(resp), Err: err}
			if resp != nil && resp.Request != nil {
				info.Attempt = resp.Request.RetryAttempt
				if resp.Request.RawURL != "" {
					info.URL = resp.Request.RawURL
				} else if resp.Request.URL != nil {
					info.URL = resp.Request.URL.String()
				}
			}
			opts.OnRetry(info)
		})
	}
	return c, nil
}

// applyProxy routes the client through proxyURL. socks5 goes through a
// golang.org/x/net/proxy dialer; http(s) uses the transport's proxy support.
func applyProxy(c *req.Client, proxyURL string, timeout time.Duration) error {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("httpclient: proxy url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		c.SetProxyURL(proxyURL)
		return nil
	case "socks5", "socks5h":
		d := &net.Dialer{Timeout: timeout}
		p, err := proxy.FromURL(u, d)
		if err != nil {
			return fmt.Errorf("httpclient: proxy setup: %w", err)
		}
		c.SetDial(func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := p.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return p.Dial(network, addr)
		})
		log.Printf("httpclient: using socks proxy %s", u.Host)
		return nil
	default:
		return fmt.Errorf("httpclient: unsupported proxy scheme %q", u.Scheme)
	}
}

func statusOf(resp *req.Response) int {
	if resp == nil {
		return 0
	}
	return resp.GetStatusCode()
}
