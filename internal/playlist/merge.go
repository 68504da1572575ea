package playlist

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// Merge concatenates rendered playlists under one shared header, dropping each
// part's own #EXTM3U line and blank lines.
func Merge(epgURLs []string, parts ...[]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header(epgURLs))
	for _, p := range parts {
		sc := bufio.NewScanner(bytes.NewReader(p))
		sc.Buffer(nil, maxLineSize)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#EXTM3U") {
				continue
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

var urlTVGAttr = regexp.MustCompile(`(?i)(?:url-tvg|x-tvg-url)="([^"]*)"`)

// HeaderEPGURLs returns the EPG URLs declared on the #EXTM3U line of data.
func HeaderEPGURLs(data []byte) []string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(nil, maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#EXTM3U") {
			return nil
		}
		var out []string
		for _, m := range urlTVGAttr.FindAllStringSubmatch(line, -1) {
			for _, u := range strings.Split(m[1], ",") {
				if u = strings.TrimSpace(u); u != "" {
					out = append(out, u)
				}
			}
		}
		return out
	}
	return nil
}
