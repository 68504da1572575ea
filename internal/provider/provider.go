// Package provider turns upstream channel sources into rendered playlists.
// FeedDriver covers every JSON channel feed through a per-service table;
// TubiDriver scrapes Tubi's live page.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
)

// ErrNoChannels means the source parsed but yielded nothing to write.
var ErrNoChannels = errors.New("no channels")

// Fetcher is the subset of *fetch.Fetcher drivers use.
type Fetcher interface {
	Get(ctx context.Context, url string, opts fetch.Options) ([]byte, error)
	GetText(ctx context.Context, url string, opts fetch.Options) (string, error)
	GetJSON(ctx context.Context, url string, opts fetch.Options, v any) error
}

// Driver produces the playlists for one service.
type Driver interface {
	Name() string
	Run(ctx context.Context, env *Env) (*Result, error)
}

// Env is everything a driver may use. It is built once per run and passed
// explicitly; drivers keep no state between runs.
type Env struct {
	Fetch Fetcher
	// Regions limits output to these region codes ("all" included only when
	// listed). Empty means every upstream region plus "all".
	Regions []string
	Sort    channel.SortOptions
	// Limiter paces repeated requests inside one driver. Nil means no pacing.
	Limiter *rate.Limiter
	// SelfURL returns the public URL a file in the output directory will be
	// served from, or "" when unknown.
	SelfURL func(name string) string
	// NewID generates session identifiers. Nil uses random UUIDs.
	NewID func() string
	Debug bool
}

func (e *Env) wantRegion(code string) bool {
	if len(e.Regions) == 0 {
		return true
	}
	for _, r := range e.Regions {
		if strings.EqualFold(strings.TrimSpace(r), code) {
			return true
		}
	}
	return false
}

func (e *Env) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Env) selfURL(name string) string {
	if e.SelfURL == nil {
		return ""
	}
	return e.SelfURL(name)
}

func (e *Env) wait(ctx context.Context) error {
	if e.Limiter == nil {
		return nil
	}
	return e.Limiter.Wait(ctx)
}

// Output is one playlist file.
type Output struct {
	FileName string
	Region   string
	Content  []byte
	Channels int
	EPGURLs  []string
	// Master marks the output that represents the whole service in a
	// merged playlist (its "all" or only playlist).
	Master bool
}

// Document is a non-playlist file a driver produced, e.g. an XMLTV guide.
type Document struct {
	FileName string
	Content  []byte
}

// Result is what one driver run produced.
type Result struct {
	Service string
	Outputs []Output
	EPG     []Document
	// EPGSources are guide URLs that cover this service's channels.
	EPGSources []string
}

// Channels totals channels across outputs.
func (r *Result) Channels() int {
	n := 0
	for _, o := range r.Outputs {
		n += o.Channels
	}
	return n
}

func isAll(region string) bool { return region == catalog.AllRegion }
