// Package output owns the playlist directory: file naming, wiping it at the
// start of a run, and atomic writes.
package output

import (
	"path/filepath"
	"strings"
)

// Well-known file names written by the orchestrator.
const (
	MasterPlaylist = "all_services.m3u"
	MasterEPG      = "all_services_epg.xml"
)

// PlaylistName returns "{service}_{region}.m3u". The same (service, region)
// always maps to the same name.
func PlaylistName(service, region string) string {
	return sanitizeID(service) + "_" + sanitizeID(region) + ".m3u"
}

// EPGName returns "{service}_epg.xml".
func EPGName(service string) string {
	return sanitizeID(service) + "_epg.xml"
}

// Path joins dir and a file name produced by this package.
func Path(dir, name string) string {
	return filepath.Join(dir, filepath.Base(name))
}

func sanitizeID(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		s = "unknown"
	}
	return s
}
