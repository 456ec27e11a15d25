package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/api"
	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/config"
	"github.com/snarg/subforge/internal/imagegen"
	"github.com/snarg/subforge/internal/ingest"
	"github.com/snarg/subforge/internal/metrics"
	"github.com/snarg/subforge/internal/notify"
	"github.com/snarg/subforge/internal/pipeline"
	"github.com/snarg/subforge/internal/render"
	"github.com/snarg/subforge/internal/speech"
	"github.com/snarg/subforge/internal/storage"
	"github.com/snarg/subforge/internal/tasks"
	"github.com/snarg/subforge/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (env: HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	flag.StringVar(&overrides.AssetsDir, "assets-dir", "", "Scratch directory for scene assets (env: ASSETS_DIR)")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "Directory for finished videos (env: OUTPUT_DIR)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (env: DATABASE_URL)")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "Hot folder for .txt scripts (env: WATCH_DIR)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("subforge", version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("subforge starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.AssetsDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	canvas := caption.ParseCanvas(cfg.Resolution)
	renderer := render.New(render.Options{
		FFmpegPath: cfg.FFmpegPath,
		Canvas:     canvas,
		FPS:        cfg.FPS,
		Log:        log.With().Str("component", "render").Logger(),
	})

	// Narration: edge-tts plus optional Whisper alignment
	speechLog := log.With().Str("component", "speech").Logger()
	var stt transcribe.Provider
	if cfg.WhisperURL != "" {
		stt = transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperTimeout)
		speechLog.Info().Str("url", cfg.WhisperURL).Str("model", cfg.WhisperModel).Msg("whisper alignment enabled")
	} else {
		speechLog.Info().Msg("whisper not configured, caption timing will be estimated")
	}
	narrator := speech.NewNarrator(speech.NarratorOptions{
		Synthesizer: speech.NewEdgeTTS(cfg.EdgeTTSPath, renderer, speechLog),
		Transcriber: stt,
		Media:       renderer,
		Language:    cfg.WhisperLanguage,
		Log:         speechLog,
	})

	// Finished video storage
	storeLog := log.With().Str("component", "storage").Logger()
	artifacts, services, err := storage.New(cfg.S3, cfg.OutputDir, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	for _, svc := range services {
		svc.Start()
	}

	// Task state
	taskLog := log.With().Str("component", "tasks").Logger()
	var (
		store  tasks.Store
		pg     *tasks.PGStore
		dbPool *pgxpool.Pool
	)
	switch cfg.TaskStore {
	case "postgres":
		pg, err = tasks.ConnectPG(ctx, cfg.DatabaseURL, taskLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		store, dbPool = pg, pg.Pool()
	default:
		path := cfg.TasksFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.OutputDir, path)
		}
		fs, err := tasks.OpenFileStore(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to open task file")
		}
		store = fs
		taskLog.Info().Str("path", path).Msg("task state kept in file")
	}
	defer store.Close()

	// Progress fan-out: SSE bus plus optional MQTT
	bus := notify.NewBus(256)
	publishers := notify.Fanout{bus}
	var mq *notify.MQTT
	if cfg.MQTTBrokerURL != "" {
		mq, err = notify.Connect(notify.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		publishers = append(publishers, mq)
	}

	// Pipeline
	imageLog := log.With().Str("component", "imagegen").Logger()
	manager := pipeline.NewManager(pipeline.Options{
		Store:     store,
		Artifacts: artifacts,
		Notifier:  publishers,
		Narrator:  narrator,
		Studio: func(c caption.Canvas) pipeline.Studio {
			r := renderer.WithCanvas(c)
			return pipeline.Studio{
				Media: r,
				Images: imagegen.New(imagegen.Options{
					URL:     cfg.SeedreamURL,
					APIKey:  cfg.SeedreamAPIKey,
					Model:   cfg.SeedreamModel,
					Mock:    cfg.MockImage,
					Timeout: 60 * time.Second,
					Painter: r,
					Log:     imageLog,
				}),
			}
		},
		AssetsDir:    cfg.AssetsDir,
		OutputDir:    cfg.OutputDir,
		BGMDir:       cfg.BGMDir,
		Canvas:       canvas,
		Voice:        cfg.TTSVoice,
		CaptionStyle: cfg.CaptionStyle,
		CaptionFont:  cfg.CaptionFont,
		CaptionLead:  cfg.CaptionLead,
		Workers:      cfg.SceneWorkers,
		Stagger:      cfg.SceneStagger,
		Log:          log.With().Str("component", "pipeline").Logger(),
	})

	prometheus.MustRegister(metrics.NewCollector(dbPool, manager))

	// Hot folder
	var watcher *ingest.FileWatcher
	if cfg.WatchDir != "" {
		watcher = ingest.NewFileWatcher(ingest.WatcherOptions{
			Dir:       cfg.WatchDir,
			Submitter: manager,
			Defaults: pipeline.Request{
				Voice:         cfg.TTSVoice,
				SubtitleStyle: cfg.CaptionStyle,
				FontName:      cfg.CaptionFont,
			},
			Log: log.With().Str("component", "watcher").Logger(),
		})
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.WatchDir).Msg("failed to start file watcher")
		}
	}

	// HTTP Server
	health := api.HealthSources{
		Storage: artifacts.Type(),
		Queue: func() api.QueueStatusData {
			s := manager.Stats()
			return api.QueueStatusData{
				RunningTasks: manager.Running(),
				Pending:      s.Pending,
				Completed:    s.Completed,
				Failed:       s.Failed,
			}
		},
	}
	if pg != nil {
		health.Database = pg
	}
	if mq != nil {
		health.MQTT = mq
	}
	if watcher != nil {
		health.Watcher = watcher
	}
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		Tasks:     store,
		Jobs:      manager,
		Artifacts: artifacts,
		Events:    bus,
		Health:    health,
		Version:   version,
		StartTime: startTime,
		Log:       log.With().Str("component", "http").Logger(),
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if watcher != nil {
		watcher.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tasks still running at shutdown")
	}
	publishers.Close()
	for _, svc := range services {
		svc.Stop()
	}

	log.Info().Msg("subforge stopped")
}
