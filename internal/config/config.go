package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/httpclient"
	"github.com/aphrodite747/app-m3u-generator/internal/provider"
	"github.com/aphrodite747/app-m3u-generator/internal/safeurl"
)

// MergeScope selects which playlists go into the master playlist.
type MergeScope string

const (
	// MergeAll takes each service's "all" (or only) playlist.
	MergeAll MergeScope = "all"
	// MergeEvery takes every playlist written, regional ones included.
	MergeEvery MergeScope = "every"
)

// ParseMergeScope accepts "all" or "every" (case-insensitive).
func ParseMergeScope(s string) (MergeScope, error) {
	switch MergeScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeAll:
		return MergeAll, nil
	case MergeEvery:
		return MergeEvery, nil
	}
	return "", fmt.Errorf("unknown merge scope %q (want all or every)", s)
}

// Config holds every setting for one generator run.
// Load from env; the CLI overrides individual fields from flags.
type Config struct {
	OutputDir string // playlists are written here; wiped at the start of each run

	// HTTP
	UserAgent        string
	RequestTimeout   time.Duration
	MaxRetries       int
	RetryDelay       time.Duration // fixed wait after network errors and 5xx
	RateLimitDelay   time.Duration // multiplied by attempt number on 429
	RetryJitter      time.Duration
	MaxRateLimitWait time.Duration
	ProxyURL         string // socks5://, http:// or https://; empty = direct
	Impersonate      bool   // Chrome TLS fingerprint

	// Selection and ordering
	Services       []string // empty = every built-in service
	Regions        []string // empty = every region plus "all"
	Sort           string   // name | number | group
	PriorityGroups []string // group sort: these first, in this order
	DriverPause    time.Duration
	GroupPolicies  []string // service=policy pairs, e.g. plex=first-of

	// Merged outputs
	MergePlaylist bool
	MergeScope    string // all | every
	MergeEPG      bool

	// Where the output directory is published, for self-referencing EPG URLs.
	GitHubOwner  string
	GitHubRepo   string
	GitHubBranch string

	TubiMirrorURL string
	TubiBatchSize int

	LogFile     string // also log to this rotating file
	Debug       bool
	MetricsFile string // node_exporter textfile; empty = disabled
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load() to use a .env file.
func Load() *Config {
	c := &Config{
		OutputDir:        getEnv("M3UGEN_OUTPUT_DIR", "playlists"),
		UserAgent:        getEnv("M3UGEN_USER_AGENT", httpclient.DefaultUserAgent),
		RequestTimeout:   getEnvDuration("M3UGEN_REQUEST_TIMEOUT", httpclient.DefaultTimeout),
		MaxRetries:       getEnvInt("M3UGEN_MAX_RETRIES", httpclient.DefaultRetryPolicy.MaxRetries),
		RetryDelay:       getEnvDuration("M3UGEN_RETRY_DELAY", httpclient.DefaultRetryPolicy.Delay),
		RateLimitDelay:   getEnvDuration("M3UGEN_RATE_LIMIT_DELAY", httpclient.DefaultRetryPolicy.RateLimitDelay),
		RetryJitter:      getEnvDuration("M3UGEN_RETRY_JITTER", httpclient.DefaultRetryPolicy.Jitter),
		MaxRateLimitWait: getEnvDuration("M3UGEN_MAX_RATE_LIMIT_WAIT", httpclient.DefaultRetryPolicy.MaxRateLimitWait),
		ProxyURL:         os.Getenv("M3UGEN_PROXY_URL"),
		Impersonate:      getEnvBool("M3UGEN_IMPERSONATE", true),
		Services:         getEnvList("M3UGEN_SERVICES"),
		Regions:          getEnvList("M3UGEN_REGIONS"),
		Sort:             getEnv("M3UGEN_SORT", "name"),
		PriorityGroups:   getEnvList("M3UGEN_PRIORITY_GROUPS"),
		DriverPause:      getEnvDuration("M3UGEN_DRIVER_PAUSE", 2*time.Second),
		GroupPolicies:    getEnvList("M3UGEN_GROUP_POLICIES"),
		MergePlaylist:    getEnvBool("M3UGEN_MERGE_PLAYLIST", false),
		MergeScope:       getEnv("M3UGEN_MERGE_SCOPE", string(MergeAll)),
		MergeEPG:         getEnvBool("M3UGEN_MERGE_EPG", false),
		GitHubOwner:      getEnv("M3UGEN_GITHUB_OWNER", os.Getenv("GITHUB_REPOSITORY_OWNER")),
		GitHubRepo:       getEnv("M3UGEN_GITHUB_REPO", repoFromSlug(os.Getenv("GITHUB_REPOSITORY"))),
		GitHubBranch:     getEnv("M3UGEN_GITHUB_BRANCH", "main"),
		TubiMirrorURL:    getEnv("M3UGEN_TUBI_MIRROR_URL", provider.TubiDefaultMirror),
		TubiBatchSize:    getEnvInt("M3UGEN_TUBI_BATCH_SIZE", provider.DefaultTubiBatch),
		LogFile:          os.Getenv("M3UGEN_LOG_FILE"),
		Debug:            getEnvBool("M3UGEN_DEBUG", false),
		MetricsFile:      os.Getenv("M3UGEN_METRICS_FILE"),
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = httpclient.DefaultTimeout
	}
	if c.TubiBatchSize <= 0 {
		c.TubiBatchSize = provider.DefaultTubiBatch
	}
	return c
}

// Validate rejects settings that would fail later in a less obvious way.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output dir is empty"))
	} else if coversWorkDir(c.OutputDir) {
		errs = append(errs, fmt.Errorf("output dir %q is the working directory, one of its parents or a filesystem root; it is wiped on every run", c.OutputDir))
	}
	if c.ProxyURL != "" && !safeurl.IsProxyURL(c.ProxyURL) {
		errs = append(errs, fmt.Errorf("proxy url %q: want socks5://, http:// or https://", safeurl.Redact(c.ProxyURL)))
	}
	if c.TubiMirrorURL != "" && !safeurl.IsHTTPOrHTTPS(c.TubiMirrorURL) {
		errs = append(errs, fmt.Errorf("tubi mirror url %q: want http(s)", safeurl.Redact(c.TubiMirrorURL)))
	}
	if _, err := channel.ParseSortMode(c.Sort); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseMergeScope(c.MergeScope); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GroupPolicyOverrides(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries %d < 0", c.MaxRetries))
	}
	return errors.Join(errs...)
}

// RetryPolicy is the single retry/backoff policy injected into the HTTP client.
func (c *Config) RetryPolicy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxRetries:       c.MaxRetries,
		Delay:            c.RetryDelay,
		RateLimitDelay:   c.RateLimitDelay,
		Jitter:           c.RetryJitter,
		MaxRateLimitWait: c.MaxRateLimitWait,
	}
}

// SortOptions returns the parsed sort settings. Call Validate first; an
// unknown mode falls back to name order here.
func (c *Config) SortOptions() channel.SortOptions {
	mode, err := channel.ParseSortMode(c.Sort)
	if err != nil {
		mode = channel.SortByName
	}
	return channel.SortOptions{Mode: mode, PriorityGroups: c.PriorityGroups}
}

// GroupPolicyOverrides parses GroupPolicies into service name -> policy.
func (c *Config) GroupPolicyOverrides() (map[string]channel.GroupPolicy, error) {
	if len(c.GroupPolicies) == 0 {
		return nil, nil
	}
	out := make(map[string]channel.GroupPolicy, len(c.GroupPolicies))
	for _, kv := range c.GroupPolicies {
		name, val, ok := strings.Cut(kv, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("group policy %q: want service=policy", kv)
		}
		p, err := channel.ParseGroupPolicy(val)
		if err != nil {
			return nil, fmt.Errorf("group policy for %s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// Scope returns the parsed merge scope, MergeAll when invalid.
func (c *Config) Scope() MergeScope {
	s, err := ParseMergeScope(c.MergeScope)
	if err != nil {
		return MergeAll
	}
	return s
}

// SelfURL returns the raw.githubusercontent.com URL a file in OutputDir will
// be published at, or "" when the repository is unknown or OutputDir is not
// a path inside it.
func (c *Config) SelfURL(name string) string {
	if c.GitHubOwner == "" || c.GitHubRepo == "" || name == "" {
		return ""
	}
	dir := filepath.ToSlash(filepath.Clean(c.OutputDir))
	if filepath.IsAbs(c.OutputDir) || dir == ".." || strings.HasPrefix(dir, "../") {
		return ""
	}
	branch := c.GitHubBranch
	if branch == "" {
		branch = "main"
	}
	p := path.Join(c.GitHubOwner, c.GitHubRepo, branch, dir, name)
	return "https://raw.githubusercontent.com/" + p
}

// coversWorkDir reports whether dir is a filesystem root or contains the
// current working directory.
func coversWorkDir(dir string) bool {
	clean := filepath.Clean(dir)
	if clean == "." || clean == ".." {
		return true
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return true
	}
	if filepath.Dir(abs) == abs {
		return true
	}
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(abs, wd)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// repoFromSlug returns "repo" from GITHUB_REPOSITORY's "owner/repo".
func repoFromSlug(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits s on commas, trimming and dropping empty items.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
