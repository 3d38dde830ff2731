package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/35000ft/next-train-bot/internal/api"
	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/flights/sources"
	"github.com/35000ft/next-train-bot/internal/radar"
	"github.com/35000ft/next-train-bot/internal/storage/sqlite"
	"github.com/35000ft/next-train-bot/internal/weather"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting next-train-bot")

	db, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Error("failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	preferences, err := sqlite.NewPreferenceStorage(db, log)
	if err != nil {
		log.Error("failed to initialize preference storage", logger.Error(err))
		os.Exit(1)
	}

	registry := sources.DefaultRegistry(sources.Options{
		Timeout:       cfg.Fetch.Timeout(),
		ScreenshotDir: cfg.Fetch.ScreenshotDir,
	}, log)
	weatherClient := weather.NewClient(cfg.Weather, log)
	radarService := radar.NewService(cfg.Radar, log)

	router := api.NewRouter(registry, weatherClient, radarService, preferences, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	go func() {
		log.Info("http server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", logger.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", logger.Error(err))
	}

	log.Info("next-train-bot stopped")
}
