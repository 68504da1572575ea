package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPlaylistName(t *testing.T) {
	tests := []struct{ service, region, want string }{
		{"plutotv", "us", "plutotv_us.m3u"},
		{"plutotv", "all", "plutotv_all.m3u"},
		{"Plex", "CA", "plex_ca.m3u"},
		{"evil", "../../etc", "evil_____etc.m3u"},
		{"x", "", "x_unknown.m3u"},
	}
	for _, tt := range tests {
		if got := PlaylistName(tt.service, tt.region); got != tt.want {
			t.Errorf("PlaylistName(%q, %q) = %q, want %q", tt.service, tt.region, got, tt.want)
		}
	}
	if got := EPGName("tubi"); got != "tubi_epg.xml" {
		t.Errorf("EPGName = %q", got)
	}
}

func TestWipe(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playlists")
	if err := Wipe(dir); err != nil {
		t.Fatalf("Wipe(new): %v", err)
	}
	os.WriteFile(filepath.Join(dir, "stale_gb.m3u"), []byte("#EXTM3U\n"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	if err := Wipe(dir); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir not empty after Wipe: %v", entries)
	}
}

func TestWrite_Atomic(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, "plex_us.m3u", []byte("#EXTM3U\n"))
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "plex_us.m3u") {
		t.Errorf("path = %q", path)
	}
	if _, err := Write(dir, "plex_us.m3u", []byte("#EXTM3U\nsecond\n")); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "#EXTM3U\nsecond\n" {
		t.Errorf("content = %q", b)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
