package runner

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/aphrodite747/app-m3u-generator/internal/catalog"
	"github.com/aphrodite747/app-m3u-generator/internal/channel"
	"github.com/aphrodite747/app-m3u-generator/internal/config"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
	"github.com/aphrodite747/app-m3u-generator/internal/httpclient"
	"github.com/aphrodite747/app-m3u-generator/internal/metrics"
	"github.com/aphrodite747/app-m3u-generator/internal/output"
	"github.com/aphrodite747/app-m3u-generator/internal/playlist"
	"github.com/aphrodite747/app-m3u-generator/internal/provider"
)

// fakeDriver returns a canned result.
type fakeDriver struct {
	name string
	res  *provider.Result
	err  error
	runs int
}

func (f *fakeDriver) Name() string { return f.name }

func (f *fakeDriver) Run(ctx context.Context, env *provider.Env) (*provider.Result, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func rendered(epg string, recs ...channel.Record) []byte {
	var urls []string
	if epg != "" {
		urls = []string{epg}
	}
	return playlist.Bytes(urls, recs)
}

func rec(id, name string) channel.Record {
	return channel.Record{ID: id, TVGID: id, Name: name, Group: "G", StreamURL: "http://s/" + id + ".m3u8"}
}

// serviceResult has a regional playlist and an "all" playlist.
func serviceResult(name, epg string) *provider.Result {
	return &provider.Result{
		Service: name,
		Outputs: []provider.Output{
			{FileName: name + "_us.m3u", Region: "us", Content: rendered(epg+"/us.xml", rec(name+"1", "One")), Channels: 1, EPGURLs: []string{epg + "/us.xml"}},
			{FileName: name + "_all.m3u", Region: catalog.AllRegion, Content: rendered(epg+"/all.xml", rec(name+"1-us", "One"), rec(name+"2-gb", "Two")), Channels: 2, EPGURLs: []string{epg + "/all.xml"}, Master: true},
		},
		EPGSources: []string{epg + "/all.xml"},
	}
}

func testEnv(t *testing.T) *provider.Env {
	t.Helper()
	c, err := httpclient.New(httpclient.Options{
		Timeout: 5 * time.Second,
		Policy:  httpclient.RetryPolicy{MaxRetries: 0, Delay: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &provider.Env{Fetch: fetch.New(c)}
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte(s))
	w.Close()
	return buf.Bytes()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRun_UpstreamFailureIsolated(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gz(t, `{"channels":{"s1":{"name":"Stirr One","groups":["","Local"]}}}`))
	}))
	defer up.Close()

	pluto := provider.Services[0]
	pluto.FeedURL = down.URL
	stirr := provider.Services[3]
	stirr.FeedURL = up.URL

	dir := t.TempDir()
	m := metrics.New()
	metricsFile := filepath.Join(t.TempDir(), "m3ugen.prom")
	sum, err := Run(context.Background(), Options{
		OutDir:      dir,
		Drivers:     []provider.Driver{provider.NewFeedDriver(pluto), provider.NewFeedDriver(stirr)},
		Env:         testEnv(t),
		Metrics:     m,
		MetricsFile: metricsFile,
	})
	if err != nil {
		t.Fatal(err)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "plutotv_*.m3u")); len(matches) != 0 {
		t.Errorf("pluto files written: %v", matches)
	}
	stirrPath := filepath.Join(dir, "stirr_all.m3u")
	if !exists(stirrPath) {
		t.Fatal("stirr_all.m3u missing")
	}
	data, _ := os.ReadFile(stirrPath)
	if !strings.Contains(string(data), `group-title="Local",Stirr One`) {
		t.Errorf("stirr playlist:\n%s", data)
	}
	if !reflect.DeepEqual(sum.Failed, []string{"plutotv"}) || sum.Channels != 1 {
		t.Errorf("summary = %+v", sum)
	}
	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`m3ugen_driver_runs_total{outcome="failed",service="plutotv"} 1`,
		`m3ugen_driver_runs_total{outcome="ok",service="stirr"} 1`,
		`m3ugen_channels_written_total{service="stirr"} 1`,
	} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics missing %q:\n%s", want, prom)
		}
	}
}

func TestRun_WipesOutputDir(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "plutotv_xx.m3u")
	os.WriteFile(stale, []byte("#EXTM3U\n"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)

	d := &fakeDriver{name: "plex", res: serviceResult("plex", "http://epg")}
	sum, err := Run(context.Background(), Options{OutDir: dir, Drivers: []provider.Driver{d}, Env: testEnv(t)})
	if err != nil {
		t.Fatal(err)
	}
	if exists(stale) || exists(filepath.Join(dir, "sub")) {
		t.Error("stale entries survived")
	}
	if len(sum.Files) != 2 || sum.Channels != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_OutputDirUnusable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	os.WriteFile(file, nil, 0644)
	d := &fakeDriver{name: "plex", res: serviceResult("plex", "http://epg")}
	if _, err := Run(context.Background(), Options{OutDir: file, Drivers: []provider.Driver{d}, Env: testEnv(t)}); err == nil {
		t.Fatal("want error for unusable output dir")
	}
	if d.runs != 0 {
		t.Error("driver ran without an output dir")
	}
}

func TestRun_EmptyAndFailedDrivers(t *testing.T) {
	empty := &fakeDriver{name: "tubi", res: &provider.Result{Service: "tubi"}}
	broken := &fakeDriver{name: "roku", err: errors.New("boom")}
	sum, err := Run(context.Background(), Options{OutDir: t.TempDir(), Drivers: []provider.Driver{empty, broken}, Env: testEnv(t)})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sum.Empty, []string{"tubi"}) || !reflect.DeepEqual(sum.Failed, []string{"roku"}) || len(sum.Files) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDriver{name: "plex", res: serviceResult("plex", "http://epg")}
	_, err := Run(ctx, Options{OutDir: t.TempDir(), Drivers: []provider.Driver{d}, Env: testEnv(t)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if d.runs != 0 {
		t.Error("driver ran after cancellation")
	}
}

func TestRun_PauseBetweenDrivers(t *testing.T) {
	a := &fakeDriver{name: "a", res: serviceResult("a", "http://epg")}
	b := &fakeDriver{name: "b", res: serviceResult("b", "http://epg")}
	env := testEnv(t)
	start := time.Now()
	if _, err := Run(context.Background(), Options{OutDir: t.TempDir(), Drivers: []provider.Driver{a, b}, Env: env, Pause: 50 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Errorf("run took %v, want at least one pause", elapsed)
	}
	if env.Limiter == nil {
		t.Error("Env.Limiter not set from Pause")
	}
}

func TestRun_MergePlaylistScope(t *testing.T) {
	tests := []struct {
		scope config.MergeScope
		want  int
	}{
		{config.MergeAll, 4},   // 2 + 2 from the "all" playlists
		{config.MergeEvery, 6}, // plus 1 + 1 regional
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			dir := t.TempDir()
			drivers := []provider.Driver{
				&fakeDriver{name: "plex", res: serviceResult("plex", "http://epg/plex")},
				&fakeDriver{name: "stirr", res: serviceResult("stirr", "http://epg/stirr")},
			}
			sum, err := Run(context.Background(), Options{OutDir: dir, Drivers: drivers, Env: testEnv(t), MergePlaylist: true, MergeScope: tt.scope})
			if err != nil {
				t.Fatal(err)
			}
			master := filepath.Join(dir, output.MasterPlaylist)
			n, err := playlist.Verify(master)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("master tracks = %d, want %d", n, tt.want)
			}
			data, _ := os.ReadFile(master)
			if c := strings.Count(string(data), "#EXTM3U"); c != 1 {
				t.Errorf("master has %d headers", c)
			}
			header := strings.SplitN(string(data), "\n", 2)[0]
			if !strings.Contains(header, "http://epg/plex/all.xml") || !strings.Contains(header, "http://epg/stirr/all.xml") {
				t.Errorf("master header = %q", header)
			}
			if sum.Channels != 6 {
				t.Errorf("summary channels = %d, master must not be counted", sum.Channels)
			}
		})
	}
}

const guideA = `<?xml version="1.0"?><tv><channel id="a"><display-name>A</display-name></channel><programme start="20240101000000 +0000" stop="20240101010000 +0000" channel="a"><title>Show A</title></programme></tv>`

func TestRun_MergeEPG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plex/all.xml":
			w.Write(gz(t, guideA))
		case "/stirr/all.xml":
			w.Write([]byte("<html>not a guide</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	inline := `<tv><channel id="t1"><display-name>Tubi One</display-name></channel></tv>`
	tubi := &provider.Result{
		Service: "tubi",
		Outputs: []provider.Output{{FileName: "tubi_all.m3u", Region: catalog.AllRegion, Content: rendered("", rec("t1", "Tubi One")), Channels: 1, Master: true}},
		EPG:     []provider.Document{{FileName: output.EPGName("tubi"), Content: []byte(inline)}},
	}
	drivers := []provider.Driver{
		&fakeDriver{name: "plex", res: serviceResult("plex", srv.URL+"/plex")},
		&fakeDriver{name: "stirr", res: serviceResult("stirr", srv.URL+"/stirr")},
		&fakeDriver{name: "roku", res: serviceResult("roku", srv.URL+"/roku")},
		&fakeDriver{name: "tubi", res: tubi},
	}
	env := testEnv(t)
	env.SelfURL = func(name string) string { return "https://raw.githubusercontent.com/o/r/main/playlists/" + name }
	dir := t.TempDir()
	if _, err := Run(context.Background(), Options{OutDir: dir, Drivers: drivers, Env: env, MergePlaylist: true, MergeEPG: true}); err != nil {
		t.Fatal(err)
	}

	if !exists(filepath.Join(dir, "tubi_epg.xml")) {
		t.Error("inline guide not written")
	}
	data, err := os.ReadFile(filepath.Join(dir, output.MasterEPG))
	if err != nil {
		t.Fatal(err)
	}
	guide := string(data)
	for _, want := range []string{`<channel id="a">`, "Show A", `<channel id="t1">`, "Tubi One"} {
		if !strings.Contains(guide, want) {
			t.Errorf("merged guide missing %q:\n%s", want, guide)
		}
	}
	if strings.Count(guide, "<tv") != 1 {
		t.Errorf("merged guide has nested roots:\n%s", guide)
	}

	master, _ := os.ReadFile(filepath.Join(dir, output.MasterPlaylist))
	want := `#EXTM3U url-tvg="https://raw.githubusercontent.com/o/r/main/playlists/all_services_epg.xml"`
	if got := strings.SplitN(string(master), "\n", 2)[0]; got != want {
		t.Errorf("master header = %q, want %q", got, want)
	}
}

func TestRun_MergeEPGNoSources(t *testing.T) {
	d := &fakeDriver{name: "x", res: &provider.Result{
		Service: "x",
		Outputs: []provider.Output{{FileName: "x_all.m3u", Content: rendered("http://up/epg.xml", rec("1", "One")), Channels: 1, EPGURLs: []string{"http://up/epg.xml"}, Master: true}},
	}}
	env := testEnv(t)
	env.SelfURL = func(name string) string { return "https://raw.githubusercontent.com/o/r/main/playlists/" + name }
	dir := t.TempDir()
	if _, err := Run(context.Background(), Options{OutDir: dir, Drivers: []provider.Driver{d}, Env: env, MergePlaylist: true, MergeEPG: true}); err != nil {
		t.Fatal(err)
	}
	if exists(filepath.Join(dir, output.MasterEPG)) {
		t.Error("merged guide written with no sources")
	}
	master, err := os.ReadFile(filepath.Join(dir, output.MasterPlaylist))
	if err != nil {
		t.Fatal(err)
	}
	want := `#EXTM3U url-tvg="http://up/epg.xml"`
	if got := strings.SplitN(string(master), "\n", 2)[0]; got != want {
		t.Errorf("master header = %q, want %q (no merged guide was written)", got, want)
	}
}
