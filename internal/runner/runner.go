// Package runner executes one batch run: every selected driver in turn, each
// result written to the output directory, then the optional merged outputs.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/aphrodite747/app-m3u-generator/internal/config"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
	"github.com/aphrodite747/app-m3u-generator/internal/metrics"
	"github.com/aphrodite747/app-m3u-generator/internal/output"
	"github.com/aphrodite747/app-m3u-generator/internal/playlist"
	"github.com/aphrodite747/app-m3u-generator/internal/provider"
	"github.com/aphrodite747/app-m3u-generator/internal/safeurl"
	"github.com/aphrodite747/app-m3u-generator/internal/xmltv"
)

const generatorName = "m3u-generator"

// Options configures Run.
type Options struct {
	OutDir  string
	Drivers []provider.Driver
	// Env is shared by every driver. Its Limiter is set from Pause when nil.
	Env *provider.Env
	// Pause is the minimum gap between driver runs and between paced
	// requests inside a driver. 0 disables pacing.
	Pause time.Duration

	MergePlaylist bool
	MergeScope    config.MergeScope
	MergeEPG      bool

	Metrics     *metrics.Recorder // may be nil
	MetricsFile string
}

// Summary reports what a run produced.
type Summary struct {
	Files    []string // paths written, in order
	Channels int      // channel entries across service playlists (master excluded)
	Failed   []string // services whose driver returned an error
	Empty    []string // services that ran but had nothing to write
	Duration time.Duration
}

// written is one playlist that made it to disk.
type written struct {
	service string
	out     provider.Output
}

// Run wipes opts.OutDir and runs every driver in order. A failing driver is
// logged and skipped; only an unusable output directory or cancellation
// stop the run with an error.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	sum := &Summary{}
	rec := opts.Metrics
	env := opts.Env
	if env == nil {
		return nil, errors.New("runner: nil Env")
	}
	if err := output.Wipe(opts.OutDir); err != nil {
		return nil, err
	}
	if env.Limiter == nil && opts.Pause > 0 {
		env.Limiter = rate.NewLimiter(rate.Every(opts.Pause), 1)
	}

	var (
		outputs    []written
		epgSources []string
		epgDocs    [][]byte
		runErr     error
	)
	for i, d := range opts.Drivers {
		name := d.Name()
		if env.Limiter != nil {
			if err := env.Limiter.Wait(ctx); err != nil {
				runErr = err
			}
		}
		if runErr == nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			for _, rest := range opts.Drivers[i:] {
				rec.DriverRun(rest.Name(), metrics.OutcomeSkipped)
			}
			break
		}

		log.Printf("runner: %s: starting", name)
		res, err := d.Run(ctx, env)
		if err != nil {
			log.Printf("runner: %s: %v", name, err)
			sum.Failed = append(sum.Failed, name)
			rec.DriverRun(name, metrics.OutcomeFailed)
			continue
		}
		if len(res.Outputs) == 0 {
			log.Printf("runner: %s: nothing to write", name)
			sum.Empty = append(sum.Empty, name)
			rec.DriverRun(name, metrics.OutcomeEmpty)
			continue
		}
		rec.DriverRun(name, metrics.OutcomeOK)

		for _, o := range res.Outputs {
			path, err := output.Write(opts.OutDir, o.FileName, o.Content)
			if err != nil {
				log.Printf("runner: %s: %v", name, err)
				continue
			}
			n := verified(path, o)
			log.Printf("runner: %s: wrote %s (%d channels)", name, path, n)
			sum.Files = append(sum.Files, path)
			sum.Channels += n
			rec.PlaylistWritten(name, n)
			o.Channels = n
			outputs = append(outputs, written{service: name, out: o})
		}
		for _, doc := range res.EPG {
			path, err := output.Write(opts.OutDir, doc.FileName, doc.Content)
			if err != nil {
				log.Printf("runner: %s: %v", name, err)
				continue
			}
			log.Printf("runner: %s: wrote %s", name, path)
			sum.Files = append(sum.Files, path)
			rec.DocumentWritten(name)
			epgDocs = append(epgDocs, doc.Content)
		}
		epgSources = append(epgSources, res.EPGSources...)
	}

	if runErr == nil {
		epgWritten := false
		if opts.MergeEPG {
			if path, ok := mergeEPG(ctx, opts, epgSources, epgDocs); ok {
				sum.Files = append(sum.Files, path)
				epgWritten = true
			}
		}
		if opts.MergePlaylist {
			if path, ok := mergePlaylist(opts, outputs, epgWritten); ok {
				sum.Files = append(sum.Files, path)
			}
		}
	}

	sum.Duration = time.Since(start)
	rec.RunFinished(sum.Duration, time.Now())
	if err := rec.WriteTextfile(opts.MetricsFile); err != nil {
		log.Printf("runner: metrics: %v", err)
	}
	log.Printf("runner: done in %v: %d files, %d channels, %d failed %v",
		sum.Duration.Round(time.Millisecond), len(sum.Files), sum.Channels, len(sum.Failed), sum.Failed)
	return sum, runErr
}

// verified re-reads the written file and returns its track count, falling
// back to the driver's own count when the file does not re-parse.
func verified(path string, o provider.Output) int {
	n, err := playlist.Verify(path)
	if err != nil {
		log.Printf("runner: %v; keeping driver count %d", err, o.Channels)
		return o.Channels
	}
	if n != o.Channels {
		log.Printf("runner: %s: re-read %d tracks, driver reported %d", path, n, o.Channels)
	}
	return n
}

// mergePlaylist writes the master playlist from the outputs in scope. The
// header points at the merged guide only when that file was written.
func mergePlaylist(opts Options, outs []written, epgWritten bool) (string, bool) {
	var (
		parts   [][]byte
		epgURLs []string
		seen    = map[string]bool{}
	)
	for _, w := range outs {
		if opts.MergeScope != config.MergeEvery && !w.out.Master {
			continue
		}
		parts = append(parts, w.out.Content)
		for _, u := range w.out.EPGURLs {
			if !seen[u] {
				seen[u] = true
				epgURLs = append(epgURLs, u)
			}
		}
	}
	if len(parts) == 0 {
		log.Printf("runner: master playlist: no playlists in scope %q", opts.MergeScope)
		return "", false
	}
	if epgWritten && opts.Env.SelfURL != nil {
		if self := opts.Env.SelfURL(output.MasterEPG); self != "" {
			epgURLs = []string{self}
		}
	}
	data, err := playlist.Merge(epgURLs, parts...)
	if err != nil {
		log.Printf("runner: master playlist: %v", err)
		return "", false
	}
	path, err := output.Write(opts.OutDir, output.MasterPlaylist, data)
	if err != nil {
		log.Printf("runner: master playlist: %v", err)
		return "", false
	}
	log.Printf("runner: wrote %s from %d playlists", path, len(parts))
	return path, true
}

// mergeEPG fetches every service guide plus the inline ones and writes their
// union. Sources that fail to fetch or parse are skipped.
func mergeEPG(ctx context.Context, opts Options, sources []string, docs [][]byte) (string, bool) {
	var buf bytes.Buffer
	m := xmltv.NewMerger(&buf, generatorName)
	seen := map[string]bool{}
	for _, u := range sources {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		data, err := opts.Env.Fetch.Get(ctx, u, fetch.Options{Compression: fetch.Gzip})
		if err != nil {
			log.Printf("runner: merged epg: %v", err)
			continue
		}
		if err := m.Add(bytes.NewReader(data)); err != nil {
			log.Printf("runner: merged epg: %s: %v", safeurl.Redact(u), err)
		}
	}
	for i, doc := range docs {
		if err := m.Add(bytes.NewReader(doc)); err != nil {
			log.Printf("runner: merged epg: inline guide %d: %v", i, err)
		}
	}
	if err := m.Close(); err != nil {
		log.Printf("runner: merged epg: %v", err)
		return "", false
	}
	if m.Sources() == 0 {
		log.Print("runner: merged epg: no usable sources")
		return "", false
	}
	path, err := output.Write(opts.OutDir, output.MasterEPG, buf.Bytes())
	if err != nil {
		log.Printf("runner: merged epg: %v", err)
		return "", false
	}
	log.Printf("runner: wrote %s from %d sources", path, m.Sources())
	return path, true
}

// String is a one-line description for the CLI.
func (s *Summary) String() string {
	return fmt.Sprintf("%d files, %d channels, %d failed, %d empty in %v",
		len(s.Files), s.Channels, len(s.Failed), len(s.Empty), s.Duration.Round(time.Millisecond))
}
