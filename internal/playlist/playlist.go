// Package playlist renders channel records as extended M3U and post-processes
// rendered playlists (merge, header inspection, verification).
package playlist

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/aphrodite747/app-m3u-generator/internal/channel"
)

// Render writes the #EXTM3U header and one #EXTINF/URL pair per record.
// Output depends only on the input; there are no timestamps.
func Render(w io.Writer, epgURLs []string, records []channel.Record) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Header(epgURLs))
	for _, r := range records {
		writeEntry(bw, r)
	}
	return bw.Flush()
}

// Bytes is Render into memory.
func Bytes(epgURLs []string, records []channel.Record) []byte {
	var buf bytes.Buffer
	Render(&buf, epgURLs, records)
	return buf.Bytes()
}

// Header returns the #EXTM3U line (with trailing newline). url-tvg is only
// present when there are EPG URLs.
func Header(epgURLs []string) string {
	var urls []string
	for _, u := range epgURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, attr(u))
		}
	}
	if len(urls) == 0 {
		return "#EXTM3U\n"
	}
	return `#EXTM3U url-tvg="` + strings.Join(urls, ",") + "\"\n"
}

func writeEntry(w *bufio.Writer, r channel.Record) {
	r = r.WithDefaults()
	name := displayName(r.Name)
	chno := ""
	if r.Number != nil {
		chno = strconv.Itoa(*r.Number)
	}
	w.WriteString(`#EXTINF:-1 channel-id="` + attr(r.ID) + `"`)
	w.WriteString(` tvg-id="` + attr(r.TVGID) + `"`)
	w.WriteString(` tvg-chno="` + chno + `"`)
	w.WriteString(` tvg-name="` + attr(name) + `"`)
	w.WriteString(` tvg-logo="` + attr(r.Logo) + `"`)
	w.WriteString(` group-title="` + attr(r.Group) + `"`)
	w.WriteString("," + name + "\n")
	w.WriteString(lineSafe.Replace(strings.TrimSpace(r.StreamURL)) + "\n")
}

var (
	attrSafe = strings.NewReplacer(`"`, "'", "\r\n", " ", "\r", " ", "\n", " ")
	lineSafe = strings.NewReplacer("\r", "", "\n", "")
)

// attr makes s safe inside a double-quoted attribute value.
func attr(s string) string {
	return attrSafe.Replace(s)
}

// displayName is the text after the last comma of an #EXTINF line, so it
// cannot contain commas itself.
func displayName(s string) string {
	s = attr(s)
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}
