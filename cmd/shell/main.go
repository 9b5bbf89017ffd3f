package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/je4/mediashell/pkg/shell"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		_, _ = os.Stderr.WriteString("cannot load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var out io.Writer = zerolog.NewConsoleWriter()
	if cfg.Log.File != "" {
		logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_, _ = os.Stderr.WriteString("cannot open log file: " + err.Error() + "\n")
			os.Exit(1)
		}
		defer logFile.Close()
		out = logFile
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zlogger := zLogger.ZLogger(&logger)

	logger.Info().Msgf("starting %s", cfg.Name)

	app, err := shell.NewApp(shell.Options{
		ServiceURL:     cfg.ServiceURL,
		LocalAddr:      cfg.LocalAddr,
		RegionEndpoint: cfg.Region.Endpoint,
		ServiceDomains: cfg.Domains.Service,
		AuthDomains:    cfg.Domains.Auth,
		Kiosk:          cfg.Kiosk,
		Debug:          cfg.Debug,
		PurgeCache:     cfg.PurgeCache,
		DRMProbe:       cfg.DRMProbe,
		NTPServer:      cfg.NTPServer,
		SettingsDir:    cfg.SettingsDir,
		BrowserOpts:    cfg.Browser,
	}, zlogger)
	if err != nil {
		logger.Error().Err(err).Msg("cannot create shell")
		os.Exit(1)
	}

	if err := app.Startup(context.Background()); err != nil {
		logger.Error().Err(err).Msg("cannot start shell")
		app.Shutdown()
		os.Exit(1)
	}
	defer app.Shutdown()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigint:
		logger.Info().Msg("received shutdown signal")
	case <-app.Done():
		logger.Info().Msg("shell finished")
	}
}
