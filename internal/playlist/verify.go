package playlist

import (
	"fmt"

	"github.com/jamesnetherton/m3u"
)

// Verify re-reads a written playlist with an independent parser and returns
// its track count.
func Verify(path string) (int, error) {
	pl, err := m3u.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("verify %s: %w", path, err)
	}
	return len(pl.Tracks), nil
}
