package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Retry(429)
	r.Retry(429)
	r.Retry(0)
	r.DriverRun("plutotv", OutcomeFailed)
	r.DriverRun("plex", OutcomeOK)
	r.PlaylistWritten("plex", 12)
	r.PlaylistWritten("plex", 3)
	r.DocumentWritten("tubi")
	r.RunFinished(1500*time.Millisecond, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "m3ugen.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`m3ugen_fetch_retries_total{code="429"} 2`,
		`m3ugen_fetch_retries_total{code="0"} 1`,
		`m3ugen_driver_runs_total{outcome="failed",service="plutotv"} 1`,
		`m3ugen_driver_runs_total{outcome="ok",service="plex"} 1`,
		`m3ugen_playlists_written_total{service="plex"} 2`,
		`m3ugen_channels_written_total{service="plex"} 15`,
		`m3ugen_epg_documents_written_total{service="tubi"} 1`,
		`m3ugen_run_duration_seconds 1.5`,
		`m3ugen_last_run_timestamp_seconds 1.7e+09`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestRecorder_Isolated(t *testing.T) {
	a, b := New(), New()
	a.DriverRun("roku", OutcomeOK)
	mfs, err := b.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "m3ugen_driver_runs_total" && len(mf.GetMetric()) > 0 {
			t.Error("registries share state")
		}
	}
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Retry(500)
	r.DriverRun("x", OutcomeOK)
	r.PlaylistWritten("x", 1)
	r.DocumentWritten("x")
	r.RunFinished(time.Second, time.Now())
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatal(err)
	}
	if r.Registry() != nil {
		t.Error("nil recorder should have nil registry")
	}
}
