package channel

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// SortMode selects the playlist order.
type SortMode int

const (
	SortByName SortMode = iota
	SortByNumber
	SortByGroup
)

func (m SortMode) String() string {
	switch m {
	case SortByNumber:
		return "number"
	case SortByGroup:
		return "group"
	}
	return "name"
}

// ParseSortMode accepts "name", "number"/"chno" and "group".
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortByName, nil
	case "number", "chno":
		return SortByNumber, nil
	case "group":
		return SortByGroup, nil
	}
	return 0, fmt.Errorf("unknown sort mode %q (want name, number or group)", s)
}

// missingNumber sorts channels without a number after every real one.
const missingNumber = 999999

// catchAllGroups always sort after named groups.
var catchAllGroups = map[string]bool{
	"other":         true,
	"others":        true,
	"unsorted":      true,
	"uncategorised": true,
	"uncategorized": true,
	"unknown":       true,
	"misc":          true,
}

// SortOptions configures Sort.
type SortOptions struct {
	Mode SortMode
	// PriorityGroups come first in SortByGroup, in this order.
	PriorityGroups []string
}

type sortKey struct {
	primary string
	number  int
	name    string
	id      string
}

// Sort orders records in place. Ties always fall back to name then ID so the
// result does not depend on input order.
func Sort(records []Record, opts SortOptions) {
	fold := cases.Fold()
	priority := make(map[string]int, len(opts.PriorityGroups))
	for i, g := range opts.PriorityGroups {
		g = fold.String(strings.TrimSpace(g))
		if _, dup := priority[g]; !dup && g != "" {
			priority[g] = i
		}
	}

	keys := make([]sortKey, len(records))
	for i, r := range records {
		k := sortKey{name: fold.String(r.Name), id: r.ID, number: missingNumber}
		if r.Number != nil {
			k.number = *r.Number
		}
		if opts.Mode == SortByGroup {
			k.primary = groupKey(fold.String(strings.TrimSpace(r.Group)), priority)
		}
		keys[i] = k
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		switch opts.Mode {
		case SortByNumber:
			if ka.number != kb.number {
				return ka.number < kb.number
			}
		case SortByGroup:
			if ka.primary != kb.primary {
				return ka.primary < kb.primary
			}
		}
		if ka.name != kb.name {
			return ka.name < kb.name
		}
		return ka.id < kb.id
	})

	sorted := make([]Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

// groupKey maps a folded group name into one of three tiers:
// "0" priority (by configured position), "1" named groups, "2" catch-alls.
func groupKey(g string, priority map[string]int) string {
	if i, ok := priority[g]; ok {
		return fmt.Sprintf("0%04d", i)
	}
	if catchAllGroups[g] || g == "" {
		return "2" + g
	}
	return "1" + g
}
