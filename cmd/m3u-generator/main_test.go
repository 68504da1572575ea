package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aphrodite747/app-m3u-generator/internal/config"
)

func TestListServices(t *testing.T) {
	cfg := &config.Config{TubiMirrorURL: "https://mirror.example/tubi.m3u"}
	var buf bytes.Buffer
	listServices(&buf, cfg)
	out := buf.String()
	last := -1
	for _, name := range []string{"plutotv", "plex", "samsungtvplus", "stirr", "tubi", "roku"} {
		i := strings.Index(out, "\n"+name+" ")
		if i < 0 {
			t.Fatalf("service %q missing:\n%s", name, out)
		}
		if i < last {
			t.Errorf("service %q out of run order:\n%s", name, out)
		}
		last = i
	}
	for _, want := range []string{"mapped feed", "membership feed", "flat feed", "scraper", "https://mirror.example/tubi.m3u"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_rejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-nope"}},
		{"bad sort", []string{"-sort", "random"}},
		{"bad merge scope", []string{"-merge-scope", "some"}},
		{"bad proxy", []string{"-proxy", "ftp://proxy:21"}},
		{"unknown service", []string{"-services", "plutotv,netflix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{OutputDir: t.TempDir(), Sort: "name", MergeScope: "all"}
			if code := runCmd(cfg, tt.args); code != 1 {
				t.Errorf("runCmd(%v) = %d, want 1", tt.args, code)
			}
		})
	}
}
