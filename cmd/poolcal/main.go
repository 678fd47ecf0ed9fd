package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"poolcal/internal/config"
	appLog "poolcal/internal/log"
	"poolcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	preview    int
	debug      bool
}

func main() {
	flags := parseFlags()

	// Secrets such as GEMINI_API_KEY may live in a local .env file.
	_ = godotenv.Load()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	level, ok := appLog.ParseLevel(conf.LogLevel)
	if !ok {
		appLog.Warn("unknown log level; using info", "log_level", conf.LogLevel)
	}
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"resolver", conf.Resolver,
		"fetch_mode", conf.Fetch.Mode,
		"pools", len(conf.Pools),
		"discover", conf.Discover.Homepage != "",
		"output_dir", conf.OutputDir,
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	if flags.preview > 0 {
		previewStdout(conf, flags.preview)
		return
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

	r, err := newRunner(ctx, conf)
	if err != nil {
		appLog.Error("failed to set up pipeline", err)
		os.Exit(1)
	}

	if flags.once {
		if _, err := r.runOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	if conf.Listen != "" {
		srv := web.NewServer(conf)
		r.publish = srv.Publish
		go func() {
			if err := srv.Serve(ctx); err != nil {
				appLog.Error("HTTP server failed", err)
				cancel()
			}
		}()
	}

	runDaemon(ctx, conf, r)
	appLog.Info("poolcal exiting")
}

// runDaemon refreshes once at startup and then on the configured cron
// schedule until ctx is canceled.
func runDaemon(ctx context.Context, conf *config.Config, r *runner) {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		loc = time.Local
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	refresh := func() { _, _ = r.runOnce(ctx) }
	if _, err := c.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		return
	}

	refresh()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

// cronLogger routes cron's internal logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) { appLog.Debug("cron: "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...any) { appLog.Error("cron: "+msg, err, kv...) }

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./poolcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle and exit")
	flag.IntVar(&cfg.preview, "preview", 0, "Print the next N days from the written calendars and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
