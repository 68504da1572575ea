package catalog

import "strings"

// regionNames maps region codes to display names for "all"-region groups.
var regionNames = map[string]string{
	"us": "United States",
	"gb": "United Kingdom",
	"ca": "Canada",
	"de": "Germany",
	"at": "Austria",
	"ch": "Switzerland",
	"es": "Spain",
	"fr": "France",
	"it": "Italy",
	"br": "Brazil",
	"mx": "Mexico",
	"ar": "Argentina",
	"cl": "Chile",
	"co": "Colombia",
	"pe": "Peru",
	"se": "Sweden",
	"no": "Norway",
	"dk": "Denmark",
	"in": "India",
	"jp": "Japan",
	"kr": "South Korea",
	"au": "Australia",
}

// RegionName returns the display name for code, or the upper-cased code.
func RegionName(code string) string {
	if n, ok := regionNames[strings.ToLower(code)]; ok {
		return n
	}
	return strings.ToUpper(code)
}

// Entry is one channel selected for a region's playlist.
type Entry struct {
	// ID is unique within the selection: the upstream id, or "{id}-{region}"
	// in a mapped feed's "all" selection.
	ID         string
	OriginalID string
	Region     string
	// Group is set only when the selection dictates the group
	// ("{label} - {region name}" in a mapped "all").
	Group   string
	Channel Channel
}

// RegionCodes lists the concrete regions a feed offers, in upstream order.
// Flat feeds have none.
func (f *Feed) RegionCodes(shape Shape) []string {
	var out []string
	switch shape {
	case ShapeMapped:
		if f.Regions == nil {
			return nil
		}
		for p := f.Regions.Oldest(); p != nil; p = p.Next() {
			out = append(out, p.Key)
		}
	case ShapeMembership:
		if f.Channels == nil {
			return nil
		}
		seen := map[string]bool{}
		for p := f.Channels.Oldest(); p != nil; p = p.Next() {
			for _, r := range p.Value.Regions {
				if r != "" && !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
	}
	return out
}

// Select returns the entries for one region (or AllRegion). label prefixes
// the group of mapped "all" entries, e.g. "Pluto TV - United States".
func (f *Feed) Select(shape Shape, region, label string) []Entry {
	switch shape {
	case ShapeMapped:
		if region == AllRegion {
			return f.selectMappedAll(label)
		}
		return f.selectMappedRegion(region)
	case ShapeMembership:
		return f.selectMembership(region)
	default:
		if region != AllRegion {
			return nil
		}
		return f.selectMembership(AllRegion)
	}
}

func (f *Feed) selectMappedRegion(region string) []Entry {
	if f.Regions == nil {
		return nil
	}
	r, ok := f.Regions.Get(region)
	if !ok || r.Channels == nil {
		return nil
	}
	out := make([]Entry, 0, r.Channels.Len())
	for p := r.Channels.Oldest(); p != nil; p = p.Next() {
		out = append(out, Entry{ID: p.Key, OriginalID: p.Key, Region: region, Channel: p.Value})
	}
	return out
}

func (f *Feed) selectMappedAll(label string) []Entry {
	if f.Regions == nil {
		return nil
	}
	var out []Entry
	seen := map[string]bool{}
	for rp := f.Regions.Oldest(); rp != nil; rp = rp.Next() {
		code := rp.Key
		if rp.Value.Channels == nil {
			continue
		}
		group := RegionName(code)
		if label != "" {
			group = label + " - " + group
		}
		for p := rp.Value.Channels.Oldest(); p != nil; p = p.Next() {
			id := p.Key + "-" + code
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Entry{ID: id, OriginalID: p.Key, Region: code, Group: group, Channel: p.Value})
		}
	}
	return out
}

func (f *Feed) selectMembership(region string) []Entry {
	if f.Channels == nil {
		return nil
	}
	var out []Entry
	for p := f.Channels.Oldest(); p != nil; p = p.Next() {
		if region != AllRegion && !contains(p.Value.Regions, region) {
			continue
		}
		out = append(out, Entry{ID: p.Key, OriginalID: p.Key, Region: region, Channel: p.Value})
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
