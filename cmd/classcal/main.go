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
	_ "time/tzdata"

	"classcal/internal/config"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/refresh"
	"classcal/internal/state"
	"classcal/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	importPath string
	once       bool
}

func main() {
	flags := parseFlags()
	appLog.Info("classcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc := conf.Location()
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"feed", ics.RedactURL(conf.FeedURL),
		"state_path", conf.StatePath,
		"grouping", conf.Layout.Grouping,
		"basic_auth", conf.BasicAuth.Enabled(),
		"once", flags.once,
	)

	store, err := state.Open(state.NewPersister(conf.StatePath, loc))
	if err != nil {
		// A broken state file only costs the saved selection.
		appLog.Error("failed to restore state; starting empty", err, "path", conf.StatePath)
	}
	loader := state.NewLoader(ics.NewFetcher(conf.CacheDir), store, loc)

	srv, err := web.NewServer(conf, flags.configPath, store, loader)
	if err != nil {
		appLog.Error("invalid layout config", err)
		os.Exit(1)
	}

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

	if flags.importPath != "" {
		if err := importFile(loader, flags.importPath); err != nil {
			appLog.Error("import failed", err, "path", flags.importPath)
			os.Exit(1)
		}
	}

	if flags.once {
		if flags.importPath == "" {
			if err := srv.Refresh(ctx); err != nil {
				appLog.Error("refresh failed", err)
				os.Exit(1)
			}
		}
		snap := store.Snapshot()
		appLog.Info("loaded",
			"events", len(snap.Events),
			"courses", len(snap.Courses),
			"selected", snap.Selection.Len(),
		)
		return
	}

	sched, err := refresh.New(conf.RefreshCron, loc, srv.Refresh)
	if err != nil {
		appLog.Error("invalid refresh schedule", err)
		os.Exit(1)
	}
	sched.Start(ctx)
	defer sched.Stop()

	// Initial load in the background so the API is up immediately; an
	// explicit import wins over the subscription until the next refresh.
	if flags.importPath == "" && srv.FeedURL() != "" {
		go func() {
			if err := sched.Trigger(ctx); err != nil {
				appLog.Error("initial refresh failed", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	appLog.Info("classcal exiting")
}

func importFile(loader *state.Loader, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = loader.LoadBytes(filepath.Base(path), data)
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/classcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&cfg.importPath, "import", "", "Load this .ics file instead of fetching the feed at startup")
	flag.BoolVar(&cfg.once, "once", false, "Load the calendar once, log a summary and exit")

	flag.Parse()

	return cfg
}
