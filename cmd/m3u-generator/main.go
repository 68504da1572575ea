// Command m3u-generator: build M3U playlists for free ad-supported TV services.
//
//	run       Fetch every selected service and write playlists to the output directory
//	services  List the built-in services and where their channel lists come from
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/natefinch/lumberjack"

	"github.com/aphrodite747/app-m3u-generator/internal/config"
	"github.com/aphrodite747/app-m3u-generator/internal/fetch"
	"github.com/aphrodite747/app-m3u-generator/internal/httpclient"
	"github.com/aphrodite747/app-m3u-generator/internal/metrics"
	"github.com/aphrodite747/app-m3u-generator/internal/provider"
	"github.com/aphrodite747/app-m3u-generator/internal/runner"
	"github.com/aphrodite747/app-m3u-generator/internal/safeurl"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[m3u-generator] ")

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	cfg := config.Load()

	switch os.Args[1] {
	case "run":
		os.Exit(runCmd(cfg, os.Args[2:]))
	case "services":
		listServices(os.Stdout, cfg)
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <run|services> [flags]\n", os.Args[0])
	fmt.Fprintf(w, "  run       Fetch services and write playlists (see run -h)\n")
	fmt.Fprintf(w, "  services  List built-in services and their sources\n")
}

// runCmd parses run flags over cfg and performs one run. It returns the exit
// code: 0 when the run completed, even if some services were skipped.
func runCmd(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	out := fs.String("out", cfg.OutputDir, "Output directory, wiped at start (default: M3UGEN_OUTPUT_DIR)")
	services := fs.String("services", strings.Join(cfg.Services, ","), "Comma-separated services to run; empty = all")
	regions := fs.String("regions", strings.Join(cfg.Regions, ","), "Comma-separated region codes, \"all\" for the combined playlist; empty = every region")
	sortMode := fs.String("sort", cfg.Sort, "Channel order: name, number or group")
	priority := fs.String("priority", strings.Join(cfg.PriorityGroups, ","), "Groups listed first when -sort=group")
	merge := fs.Bool("merge", cfg.MergePlaylist, "Also write all_services.m3u")
	mergeScope := fs.String("merge-scope", cfg.MergeScope, "Playlists in the master: all (each service's combined list) or every")
	mergeEPG := fs.Bool("merge-epg", cfg.MergeEPG, "Also write all_services_epg.xml from every service guide")
	proxyURL := fs.String("proxy", cfg.ProxyURL, "socks5://, http:// or https:// proxy for upstream requests")
	metricsFile := fs.String("metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here")
	debug := fs.Bool("debug", cfg.Debug, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg.OutputDir = *out
	cfg.Services = config.SplitList(*services)
	cfg.Regions = config.SplitList(*regions)
	cfg.Sort = *sortMode
	cfg.PriorityGroups = config.SplitList(*priority)
	cfg.MergePlaylist = *merge
	cfg.MergeScope = *mergeScope
	cfg.MergeEPG = *mergeEPG
	cfg.ProxyURL = *proxyURL
	cfg.MetricsFile = *metricsFile
	cfg.Debug = *debug

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %v", err)
		return 1
	}
	if closer := setupLogFile(cfg.LogFile); closer != nil {
		defer closer.Close()
	}

	all := provider.Builtin(provider.TubiOptions{
		MirrorURL: cfg.TubiMirrorURL,
		BatchSize: cfg.TubiBatchSize,
	})
	policies, _ := cfg.GroupPolicyOverrides()
	if err := provider.SetGroupPolicies(all, policies); err != nil {
		log.Printf("Invalid M3UGEN_GROUP_POLICIES: %v", err)
		return 1
	}
	drivers, err := provider.Filter(all, cfg.Services)
	if err != nil {
		log.Printf("Invalid -services: %v", err)
		return 1
	}

	rec := metrics.New()
	client, err := httpclient.New(httpclient.Options{
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.RequestTimeout,
		Impersonate: cfg.Impersonate,
		ProxyURL:    cfg.ProxyURL,
		Policy:      cfg.RetryPolicy(),
		OnRetry: func(ri httpclient.RetryInfo) {
			rec.Retry(ri.StatusCode)
			if ri.Err != nil {
				log.Printf("fetch: retry %d for %s: %v", ri.Attempt, safeurl.Redact(ri.URL), ri.Err)
				return
			}
			log.Printf("fetch: retry %d for %s: HTTP %d", ri.Attempt, safeurl.Redact(ri.URL), ri.StatusCode)
		},
	})
	if err != nil {
		log.Printf("HTTP client: %v", err)
		return 1
	}
	f := fetch.New(client)
	f.Debug = cfg.Debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Running %d service(s) into %s", len(drivers), cfg.OutputDir)
	sum, err := runner.Run(ctx, runner.Options{
		OutDir:  cfg.OutputDir,
		Drivers: drivers,
		Env: &provider.Env{
			Fetch:   f,
			Regions: cfg.Regions,
			Sort:    cfg.SortOptions(),
			SelfURL: cfg.SelfURL,
			Debug:   cfg.Debug,
		},
		Pause:         cfg.DriverPause,
		MergePlaylist: cfg.MergePlaylist,
		MergeScope:    cfg.Scope(),
		MergeEPG:      cfg.MergeEPG,
		Metrics:       rec,
		MetricsFile:   cfg.MetricsFile,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Print("Interrupted")
		} else {
			log.Printf("Run failed: %v", err)
		}
		return 1
	}
	log.Printf("Done: %s", sum)
	return 0
}

// setupLogFile tees the standard logger into a rotating file when path is set.
func setupLogFile(path string) io.Closer {
	if path == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}

func listServices(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tKIND\tSOURCE")
	for _, d := range provider.Builtin(provider.TubiOptions{MirrorURL: cfg.TubiMirrorURL}) {
		switch d := d.(type) {
		case *provider.FeedDriver:
			fmt.Fprintf(tw, "%s\t%s feed\t%s\n", d.Name(), d.Service.Shape, d.Service.FeedURL)
		case *provider.TubiDriver:
			fmt.Fprintf(tw, "%s\tscraper\t%s\n", d.Name(), d.PageURL)
			if d.MirrorURL != "" {
				fmt.Fprintf(tw, "\tmirror\t%s\n", d.MirrorURL)
			}
		default:
			fmt.Fprintf(tw, "%s\t?\t\n", d.Name())
		}
	}
	tw.Flush()
}
