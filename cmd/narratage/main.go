package main

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	narratage "github.com/narratage/narratage"
	"github.com/narratage/narratage/internal/api"
	"github.com/narratage/narratage/internal/config"
	"github.com/narratage/narratage/internal/events"
	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/recordstore"
	"github.com/narratage/narratage/internal/rotation"
	"github.com/narratage/narratage/internal/storage"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "media directory (overrides MEDIA_DIR)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("narratage starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	db, err := recordstore.OpenSQLite(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer db.Close()

	keys, err := keystore.Load(ctx, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load credentials")
	}
	proj, err := project.Load(ctx, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load project")
	}

	// Media storage (local, S3, or tiered)
	media, err := storage.New(cfg.S3, cfg.MediaDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init media storage")
	}

	// Generation pipeline
	bus := events.NewBus(256)
	gemini := gen.NewGeminiClient(gen.GeminiOptions{
		LLMModel:   cfg.LLMModel,
		TTSModel:   cfg.TTSModel,
		ImageModel: cfg.ImageModel,
		TTSVoice:   cfg.TTSVoice,
		Timeout:    cfg.RequestTimeout,
	})
	eleven := gen.NewElevenLabsClient(cfg.ElevenVoiceID, cfg.RequestTimeout)
	svc := gen.NewService(rotation.NewExecutor(keys, log), gemini, eleven, media, proj, bus, log)

	runner := gen.NewRunner(gen.RunnerOptions{
		Service: svc,
		Project: proj,
		Bus:     bus,
		Delay:   cfg.BatchDelay,
		Log:     log,
	})
	runner.Start()

	// Web UI
	webFS, err := fs.Sub(narratage.WebFiles, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mount web assets")
	}

	// HTTP server
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		DB:        db,
		Keys:      keys,
		Project:   proj,
		Service:   svc,
		Runner:    runner,
		Bus:       bus,
		Media:     media,
		WebFS:     webFS,
		Version:   version,
		StartTime: startTime,
		Log:       log.With().Str("component", "http").Logger(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	runner.Stop()

	log.Info().Msg("narratage stopped")
}
