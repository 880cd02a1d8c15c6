package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"jigdule/internal/cache"
	"jigdule/internal/capture"
	"jigdule/internal/config"
	"jigdule/internal/feed"
	appLog "jigdule/internal/log"
	"jigdule/internal/pipeline"
	"jigdule/internal/render"
	"jigdule/internal/roster"
	"jigdule/internal/twitch"
	"jigdule/internal/web"
	"jigdule/internal/youtube"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	serve      bool
	snapshot   bool
	debug      bool
	logFormat  string
}

func main() {
	flags := parseFlags()

	level := appLog.LevelInfo
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.Init(level, flags.logFormat, os.Stderr)

	appLog.Info("jigdule starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"past_days", conf.PastDays,
		"future_days", conf.FutureDays,
		"tolerance_seconds", conf.ToleranceSeconds,
		"concurrency", conf.Concurrency,
		"out_dir", conf.OutDir,
		"serve", flags.serve,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.serve {
		if err := runServe(ctx, conf, flags); err != nil {
			appLog.Error("serve mode failed", err)
			os.Exit(1)
		}
		appLog.Info("jigdule exiting")
		return
	}

	if _, err := runOnce(ctx, conf, flags); err != nil {
		appLog.Error("run failed", err)
		os.Exit(1)
	}
	appLog.Info("jigdule exiting")
}

// runOnce executes one full pipeline pass: fetch, aggregate, render the
// site, export the feed, persist the ledger. Per-call failures are logged
// and rendered around; only an auth failure is returned as an error (after
// emitting the diagnostic page).
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig) (*pipeline.Result, error) {
	creators, err := roster.Load(conf.RosterPath)
	if err != nil {
		return nil, err
	}

	ledger := cache.Load(conf.LedgerPath)
	seen, resolved := ledger.Counts()
	appLog.Info("ledger loaded",
		"path", conf.LedgerPath,
		"seen_ids", seen,
		"resolved_times", resolved,
		"last_run_at", ledger.LastRunAt(),
	)

	runner := &pipeline.Runner{
		Cfg:    conf,
		Ledger: ledger,
	}
	if conf.Creds.TwitchClientID != "" && conf.Creds.TwitchClientSecret != "" {
		runner.Twitch = twitch.NewClient(conf.Creds.TwitchClientID, conf.Creds.TwitchClientSecret, conf.CallTimeout())
	}
	if conf.Creds.YouTubeAPIKey != "" {
		runner.YouTube = youtube.NewClient(conf.Creds.YouTubeAPIKey, conf.CallTimeout())
	}

	result, err := runner.Run(ctx, creators)
	if err != nil {
		// Nothing was fetched; emit the diagnostic page instead of a
		// timeline so the collaborator renders an error, not stale data.
		if werr := render.WriteError(conf.OutDir, err); werr != nil {
			appLog.Error("failed to write error page", werr)
		}
		if serr := ledger.Save(conf.LedgerPath, time.Now()); serr != nil {
			appLog.Warn("ledger save failed", "err", serr)
		}
		return nil, err
	}

	now := result.FetchedAt
	loc := conf.Location()

	if err := render.WriteTimeline(conf.OutDir, result.Groups, creators, loc, now); err != nil {
		return nil, err
	}
	if err := feed.WriteTimeline(conf.OutDir, result.Groups, creators, now); err != nil {
		appLog.Warn("feed export failed", "err", err)
	}

	// Ledger persistence is best-effort: the site is already written.
	if err := ledger.Save(conf.LedgerPath, now); err != nil {
		appLog.Warn("ledger save failed", "err", err)
	}

	if flags.snapshot {
		if err := snapshotPage(ctx, conf); err != nil {
			appLog.Warn("snapshot capture failed", "err", err)
		}
	}

	appLog.Info("run completed",
		"days", len(result.Groups),
		"failures", len(result.Failures),
	)
	return result, nil
}

// runServe runs the pipeline once, then serves the output directory over
// HTTP and re-runs the pipeline on the configured cron schedule.
func runServe(ctx context.Context, conf *config.Config, flags flagConfig) error {
	server := web.NewServer(conf)

	refresh := func() {
		res, err := runOnce(ctx, conf, flags)
		if err != nil {
			appLog.Error("scheduled run failed", err)
			return
		}
		server.SetResult(res)
	}

	// First run before the server comes up so / has content immediately.
	// A fatal first run is not fatal to serve mode; the error page is in
	// place and the next cron tick retries.
	refresh()

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// snapshotPage captures the rendered index.html to preview.png.
func snapshotPage(ctx context.Context, conf *config.Config) error {
	abs, err := filepath.Abs(filepath.Join(conf.OutDir, "index.html"))
	if err != nil {
		return err
	}
	return capture.TimelinePNG(ctx, capture.Options{
		URL:        "file://" + abs,
		OutputPath: filepath.Join(conf.OutDir, "preview.png"),
	})
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the output directory and refresh on a cron schedule")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Capture a PNG snapshot of the rendered page after each run")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.logFormat, "log-format", "console", "Log format: console or json")

	flag.Parse()

	return cfg
}
