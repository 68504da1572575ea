package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
)

const (
	mjhFeeds = "https://github.com/matthuisman/i.mjh.nz/raw/refs/heads/master/"
	mjhEPG   = "https://github.com/matthuisman/i.mjh.nz/raw/master/"

	plutoStitcher = "https://service-stitcher.clusters.pluto.tv/stitch/hls/channel/{id}/master.m3u8" +
		"?advertisingId=&appName=web&deviceMake=Chrome&deviceType=web&deviceId={deviceId}&sid={sid}&serverSideAds=true"
)

// Services is the built-in feed table, in run order.
var Services = []Service{
	{
		Name:          "plutotv",
		Label:         "Pluto TV",
		FeedURL:       mjhFeeds + "PlutoTV/.channels.json.gz",
		Compression:   fetch.Gzip,
		Shape:         catalog.ShapeMapped,
		GroupPolicy:   channel.GroupUpstream,
		GroupFallback: "Pluto TV",
		EPGURL:        mjhEPG + "PlutoTV/{region}.xml.gz",
		Stream:        SessionTemplate(plutoStitcher),
	},
	{
		Name:        "plex",
		Label:       "Plex",
		FeedURL:     mjhFeeds + "Plex/.channels.json.gz",
		Compression: fetch.Gzip,
		Shape:       catalog.ShapeMembership,
		GroupPolicy: channel.GroupKeyword,
		EPGURL:      mjhEPG + "Plex/{region}.xml.gz",
		Stream:      SlugTemplate{Template: "https://jmp2.uk/plex-{slug}.m3u8", MaxLen: channel.MaxSlugLen},
	},
	{
		Name:          "samsungtvplus",
		Label:         "Samsung TV Plus",
		FeedURL:       mjhFeeds + "SamsungTVPlus/.channels.json.gz",
		Compression:   fetch.Gzip,
		Shape:         catalog.ShapeMapped,
		GroupPolicy:   channel.GroupUpstream,
		GroupFallback: "Samsung TV Plus",
		EPGURL:        mjhEPG + "SamsungTVPlus/{region}.xml.gz",
		Stream:        IDTemplate("https://jmp2.uk/sam-{id}.m3u8"),
	},
	{
		Name:          "stirr",
		Label:         "Stirr",
		FeedURL:       mjhFeeds + "Stirr/.channels.json.gz",
		Compression:   fetch.Gzip,
		Shape:         catalog.ShapeFlat,
		GroupPolicy:   channel.GroupFirstOf,
		GroupFallback: "Stirr",
		EPGURL:        mjhEPG + "Stirr/all.xml.gz",
		Stream:        IDTemplate("https://jmp2.uk/str-{id}.m3u8"),
	},
	{
		Name:          "roku",
		Label:         "Roku",
		FeedURL:       "https://i.mjh.nz/Roku/.channels.json",
		Compression:   fetch.Auto,
		Shape:         catalog.ShapeFlat,
		GroupPolicy:   channel.GroupFirstOf,
		GroupFallback: "Roku",
		EPGURL:        mjhEPG + "Roku/all.xml.gz",
		Stream:        IDTemplate("https://jmp2.uk/rok-{id}.m3u8"),
	},
}

// TubiOptions configures the Tubi driver in Builtin.
type TubiOptions struct {
	MirrorURL string
	BatchSize int
}

// Builtin returns every built-in driver in run order (Tubi runs before Roku).
func Builtin(tubi TubiOptions) []Driver {
	out := make([]Driver, 0, len(Services)+1)
	for _, s := range Services {
		if s.Name == "roku" {
			out = append(out, NewTubiDriver(tubi))
		}
		out = append(out, NewFeedDriver(s))
	}
	return out
}

// SetGroupPolicies overrides the group policy of the named feed drivers.
// Names are case-insensitive; a name that is not a feed driver is an error.
func SetGroupPolicies(drivers []Driver, policies map[string]channel.GroupPolicy) error {
	for name, p := range policies {
		name = strings.ToLower(strings.TrimSpace(name))
		found := false
		for _, d := range drivers {
			fd, ok := d.(*FeedDriver)
			if !ok || fd.Name() != name {
				continue
			}
			fd.Service.GroupPolicy = p
			found = true
		}
		if !found {
			return fmt.Errorf("group policy for %q: no such feed service", name)
		}
	}
	return nil
}

// Filter keeps the drivers named in names (case-insensitive), preserving
// run order. Empty names keeps everything. Unknown names are an error.
func Filter(drivers []Driver, names []string) ([]Driver, error) {
	if len(names) == 0 {
		return drivers, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			want[n] = true
		}
	}
	var out []Driver
	for _, d := range drivers {
		if want[d.Name()] {
			out = append(out, d)
			delete(want, d.Name())
		}
	}
	if len(want) > 0 {
		var unknown []string
		for n := range want {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown service(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
