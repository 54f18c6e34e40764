package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/audio"
	"github.com/webfish0/happyChatty/pkg/config"
	"github.com/webfish0/happyChatty/pkg/events"
	"github.com/webfish0/happyChatty/pkg/httpapi"
	"github.com/webfish0/happyChatty/pkg/pipeline"
	"github.com/webfish0/happyChatty/pkg/sentiment"
	"github.com/webfish0/happyChatty/pkg/telemetry"
	"github.com/webfish0/happyChatty/pkg/transcribe"
)

var logger = logrus.New()

func main() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(); err != nil {
		logger.WithError(err).Fatal("Fatal error")
	}
}

func run() error {
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiler := telemetry.NewProfiler()
	hub := events.NewHub(logger, events.HubConfig{
		HistorySize: cfg.HistorySize,
		ReplayCount: cfg.ReplayCount,
	})

	// Console sink so a headless run still shows results.
	hub.AddCallback(func(event events.AnalysisEvent) error {
		fmt.Println(event.Summary())
		return nil
	})

	if cfg.EventFile != "" {
		sink, err := events.NewFileSink(cfg.EventFile)
		if err != nil {
			return fmt.Errorf("opening event file: %w", err)
		}
		hub.SetFileSink(sink)
		logger.WithField("path", cfg.EventFile).Info("Event file sink enabled")
	}

	var amqpSink *events.AMQPSink
	if cfg.AMQPUrl != "" {
		amqpSink = events.NewAMQPSink(logger, events.AMQPConfig{
			URL:       cfg.AMQPUrl,
			QueueName: cfg.AMQPQueueName,
		})
		if err := amqpSink.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP unavailable, continuing without queue sink")
		} else {
			hub.AddCallback(amqpSink.Publish)
			defer amqpSink.Close()
		}
	}

	var engine transcribe.Engine
	if cfg.TranscriptionURL != "" {
		engine = transcribe.NewHTTPEngine(logger, transcribe.HTTPEngineConfig{
			URL:        cfg.TranscriptionURL,
			APIKey:     cfg.TranscriptionAPIKey,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		})
	} else {
		logger.Warn("TRANSCRIPTION_URL not set, using mock transcription engine")
		engine = transcribe.NewMockEngine(logger)
	}

	var analyzer sentiment.Analyzer
	if cfg.OpenRouterAPIKey != "" {
		orCfg := sentiment.DefaultOpenRouterConfig()
		orCfg.APIKey = cfg.OpenRouterAPIKey
		orCfg.BaseURL = cfg.OpenRouterURL
		orCfg.Model = cfg.SentimentModel
		analyzer = sentiment.NewOpenRouterAnalyzer(logger, orCfg)
	} else {
		logger.Warn("OPENROUTER_API_KEY not set, using lexicon sentiment analyzer")
		analyzer = sentiment.NewLexiconAnalyzer()
	}

	source := audio.NewSyntheticSource(logger, audio.SyntheticConfig{
		Format: audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
	})

	orchestrator := pipeline.New(logger, pipeline.Options{
		Config:          cfg,
		Source:          source,
		Engine:          engine,
		Analyzer:        analyzer,
		Hub:             hub,
		Profiler:        profiler,
		AttachTelemetry: true,
	})
	if err := orchestrator.Start(); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}

	server := httpapi.New(logger, cfg.HTTPPort, orchestrator, hub, profiler, cfg.TelemetryInterval)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}

	orchestrator.Stop()

	if cfg.TelemetryExport != "" {
		if err := profiler.Export(cfg.TelemetryExport); err != nil {
			logger.WithError(err).Error("Failed to export telemetry")
		} else {
			logger.WithField("path", cfg.TelemetryExport).Info("Telemetry exported")
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
