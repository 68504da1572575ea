// Package metrics counts what one generator run did. Each run owns a private
// registry; nothing is served over HTTP, the registry is dumped to a
// node_exporter textfile at the end of the run.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Driver outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder holds the run's collectors. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	reg *prometheus.Registry

	fetchRetries     *prometheus.CounterVec
	driverRuns       *prometheus.CounterVec
	playlistsWritten *prometheus.CounterVec
	channelsWritten  *prometheus.CounterVec
	documentsWritten *prometheus.CounterVec
	runDuration      prometheus.Gauge
	lastRun          prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		fetchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ugen_fetch_retries_total",
			Help: "HTTP retries scheduled, by status code (0 = network error)",
		}, []string{"code"}),
		driverRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ugen_driver_runs_total",
			Help: "Service driver runs by outcome",
		}, []string{"service", "outcome"}),
		playlistsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ugen_playlists_written_total",
			Help: "Playlist files written",
		}, []string{"service"}),
		channelsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ugen_channels_written_total",
			Help: "Channel entries written across playlist files",
		}, []string{"service"}),
		documentsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "m3ugen_epg_documents_written_total",
			Help: "XMLTV guide files written",
		}, []string{"service"}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "m3ugen_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "m3ugen_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Retry(code int) {
	if r == nil {
		return
	}
	r.fetchRetries.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (r *Recorder) DriverRun(service, outcome string) {
	if r == nil {
		return
	}
	r.driverRuns.WithLabelValues(service, outcome).Inc()
}

// PlaylistWritten counts one playlist file and its channels.
func (r *Recorder) PlaylistWritten(service string, channels int) {
	if r == nil {
		return
	}
	r.playlistsWritten.WithLabelValues(service).Inc()
	r.channelsWritten.WithLabelValues(service).Add(float64(channels))
}

func (r *Recorder) DocumentWritten(service string) {
	if r == nil {
		return
	}
	r.documentsWritten.WithLabelValues(service).Inc()
}

// RunFinished records the run's duration and completion time.
func (r *Recorder) RunFinished(d time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.runDuration.Set(d.Seconds())
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format. The file
// is replaced atomically so a scraping node_exporter never sees half of it.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
