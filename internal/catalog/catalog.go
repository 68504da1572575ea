// Package catalog decodes the upstream channel feeds (region-mapped,
// membership-list and flat shapes) and fans them out into per-region
// channel selections.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrPartialDocument means a required top-level key is missing.
var ErrPartialDocument = errors.New("partial document")

// AllRegion is the synthetic region that unions every other region.
const AllRegion = "all"

// Shape is how a feed organises channels by region.
type Shape int

const (
	// ShapeMapped: regions -> {channels: id -> channel} (Pluto, Samsung).
	ShapeMapped Shape = iota
	// ShapeMembership: channels -> {regions: [...]} (Plex).
	ShapeMembership
	// ShapeFlat: channels only; a single "all" output (Stirr, Roku).
	ShapeFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeMembership:
		return "membership"
	case ShapeFlat:
		return "flat"
	}
	return "mapped"
}

// Channel is one upstream channel entry. Every field is optional.
type Channel struct {
	Name    string   `json:"name"`
	Logo    string   `json:"logo"`
	Group   string   `json:"group"`
	Groups  []string `json:"groups"`
	Chno    Number   `json:"chno"`
	Regions []string `json:"regions"`
	Slug    string   `json:"slug"`
}

// Channels keeps upstream key order.
type Channels = orderedmap.OrderedMap[string, Channel]

// Region is one entry of a mapped feed.
type Region struct {
	Name     string    `json:"name"`
	Channels *Channels `json:"channels"`
}

// Feed is the decoded upstream document. Nil maps mean the key was absent.
type Feed struct {
	Regions  *orderedmap.OrderedMap[string, Region] `json:"regions"`
	Channels *Channels                              `json:"channels"`
}

// Number is a channel number that upstream sends as a number, a numeric
// string, or not at all.
type Number struct {
	Value int
	Valid bool
}

// UnmarshalJSON never fails; anything that is not an integer is left invalid.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		*n = Number{Value: v, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		*n = Number{Value: int(f), Valid: true}
	}
	return nil
}

// Ptr returns the number as *int, nil when invalid.
func (n Number) Ptr() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Validate reports ErrPartialDocument when the key shape needs is absent.
func (f *Feed) Validate(shape Shape) error {
	switch shape {
	case ShapeMapped:
		if f.Regions == nil {
			return fmt.Errorf("missing top-level key %q: %w", "regions", ErrPartialDocument)
		}
	default:
		if f.Channels == nil {
			return fmt.Errorf("missing top-level key %q: %w", "channels", ErrPartialDocument)
		}
	}
	return nil
}
