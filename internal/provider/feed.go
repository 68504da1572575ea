package provider

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
	"github.com/aphrodite747/app-m3u-generator/internal/output"
	"github.com/aphrodite747/app-m3u-generator/internal/playlist"
)

// Service describes one JSON channel feed.
type Service struct {
	Name  string // file prefix, e.g. "plutotv"
	Label string // human name, e.g. "Pluto TV"

	FeedURL     string
	Compression fetch.Compression
	Headers     map[string]string
	Shape       catalog.Shape

	GroupPolicy   channel.GroupPolicy
	GroupFallback string

	// EPGURL may contain {region}.
	EPGURL string
	Stream StreamBuilder
}

func (s Service) epgURL(region string) string {
	if s.EPGURL == "" {
		return ""
	}
	return strings.ReplaceAll(s.EPGURL, "{region}", region)
}

// FeedDriver fetches a Service feed and writes one playlist per region.
type FeedDriver struct {
	Service Service
}

// NewFeedDriver returns a driver for s.
func NewFeedDriver(s Service) *FeedDriver {
	return &FeedDriver{Service: s}
}

func (d *FeedDriver) Name() string { return d.Service.Name }

// Run fetches the feed once and renders every selected region.
func (d *FeedDriver) Run(ctx context.Context, env *Env) (*Result, error) {
	s := d.Service
	var feed catalog.Feed
	opts := fetch.Options{Compression: s.Compression, Headers: s.Headers}
	if err := env.Fetch.GetJSON(ctx, s.FeedURL, opts, &feed); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	if err := feed.Validate(s.Shape); err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	regions := append(feed.RegionCodes(s.Shape), catalog.AllRegion)
	res := &Result{Service: s.Name}
	selected := 0
	for _, region := range regions {
		if !env.wantRegion(region) {
			continue
		}
		selected++
		records := d.records(feed.Select(s.Shape, region, s.Label), env)
		if len(records) == 0 {
			if env.Debug {
				log.Printf("provider: %s: region %s has no channels, skipped", s.Name, region)
			}
			continue
		}
		channel.Sort(records, env.Sort)
		var epg []string
		if u := s.epgURL(region); u != "" {
			epg = []string{u}
		}
		res.Outputs = append(res.Outputs, Output{
			FileName: output.PlaylistName(s.Name, region),
			Region:   region,
			Content:  playlist.Bytes(epg, records),
			Channels: len(records),
			EPGURLs:  epg,
			Master:   isAll(region),
		})
	}
	if selected == 0 {
		log.Printf("provider: %s: no requested region offered (have %s)", s.Name, strings.Join(regions, ","))
		return res, nil
	}
	if len(res.Outputs) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNoChannels)
	}
	if u := s.epgURL(catalog.AllRegion); u != "" {
		res.EPGSources = []string{u}
	}
	return res, nil
}

func (d *FeedDriver) records(entries []catalog.Entry, env *Env) []channel.Record {
	s := d.Service
	out := make([]channel.Record, 0, len(entries))
	for _, e := range entries {
		group := e.Group
		if group == "" {
			group = s.GroupPolicy.Resolve(e.Channel.Name, e.Channel.Group, e.Channel.Groups, s.GroupFallback)
		}
		rec := channel.Record{
			ID:        e.ID,
			TVGID:     e.OriginalID,
			Name:      e.Channel.Name,
			Logo:      strings.TrimSpace(e.Channel.Logo),
			Number:    e.Channel.Chno.Ptr(),
			Group:     group,
			StreamURL: s.Stream.Build(e, env),
		}
		out = append(out, rec.WithDefaults())
	}
	return out
}
