// Package channel holds the normalized channel record every driver produces,
// plus the grouping, slug and sort rules applied to it before rendering.
package channel

import "strings"

const (
	// DefaultName replaces a missing upstream name.
	DefaultName = "Unknown Channel"
	// DefaultGroup is the catch-all group when nothing better is known.
	DefaultGroup = "Unsorted"
)

// Record is one playlist entry. ID is unique within an output file.
type Record struct {
	ID        string
	TVGID     string
	Name      string
	Logo      string
	Number    *int // nil when upstream has no usable channel number
	Group     string
	StreamURL string
}

// WithDefaults returns r with empty Name/Group/TVGID filled in.
func (r Record) WithDefaults() Record {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = DefaultName
	}
	r.Group = strings.TrimSpace(r.Group)
	if r.Group == "" {
		r.Group = DefaultGroup
	}
	if r.TVGID == "" {
		r.TVGID = r.ID
	}
	return r
}

// IntPtr is a convenience for building records with a channel number.
func IntPtr(n int) *int { return &n }
