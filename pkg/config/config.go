// Package config loads pipeline settings from the environment, with a
// .env file honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration holds every tunable of the pipeline.
type Configuration struct {
	// HTTP surface
	HTTPPort int

	// Audio format
	SampleRate    int
	Channels      int
	BufferSeconds float64

	// Segmentation thresholds
	MinPause     time.Duration
	MaxUtterance time.Duration
	MinUtterance time.Duration
	IdleTimeout  time.Duration

	// Hub and cache bounds
	CacheSize   int
	HistorySize int
	ReplayCount int

	// Telemetry broadcast cadence
	TelemetryInterval time.Duration

	// Sentiment scoring
	OpenRouterAPIKey string
	OpenRouterURL    string
	SentimentModel   string

	// Transcription
	TranscriptionURL    string
	TranscriptionAPIKey string

	// Sinks
	EventFile       string
	AMQPUrl         string
	AMQPQueueName   string
	TelemetryExport string

	// Logging
	LogLevel logrus.Level
}

// Load reads configuration from the environment. A missing .env file
// is not an error.
func Load(logger *logrus.Logger) (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	config := &Configuration{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		SampleRate:          getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		Channels:            getEnvInt("AUDIO_CHANNELS", 1),
		BufferSeconds:       getEnvFloat("AUDIO_BUFFER_SECONDS", 3.0),
		MinPause:            getEnvDuration("SEGMENT_MIN_PAUSE", 500*time.Millisecond),
		MaxUtterance:        getEnvDuration("SEGMENT_MAX_UTTERANCE", 10*time.Second),
		MinUtterance:        getEnvDuration("SEGMENT_MIN_UTTERANCE", 300*time.Millisecond),
		IdleTimeout:         getEnvDuration("SEGMENT_IDLE_TIMEOUT", 2*time.Second),
		CacheSize:           getEnvInt("SENTIMENT_CACHE_SIZE", 1000),
		HistorySize:         getEnvInt("EVENT_HISTORY_SIZE", 1000),
		ReplayCount:         getEnvInt("EVENT_REPLAY_COUNT", 10),
		TelemetryInterval:   getEnvDuration("TELEMETRY_INTERVAL", 100*time.Millisecond),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:       getEnvString("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		SentimentModel:      getEnvString("SENTIMENT_MODEL", "google/gemma-2-9b-it:free"),
		TranscriptionURL:    os.Getenv("TRANSCRIPTION_URL"),
		TranscriptionAPIKey: os.Getenv("TRANSCRIPTION_API_KEY"),
		EventFile:           os.Getenv("EVENT_FILE"),
		AMQPUrl:             os.Getenv("AMQP_URL"),
		AMQPQueueName:       getEnvString("AMQP_QUEUE_NAME", "analysis_events"),
		TelemetryExport:     os.Getenv("TELEMETRY_EXPORT"),
		LogLevel:            logrus.InfoLevel,
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		level, err := logrus.ParseLevel(levelStr)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", levelStr, err)
		}
		config.LogLevel = level
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Configuration) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if c.Channels <= 0 {
		return fmt.Errorf("AUDIO_CHANNELS must be positive")
	}
	if c.BufferSeconds <= 0 {
		return fmt.Errorf("AUDIO_BUFFER_SECONDS must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("SENTIMENT_CACHE_SIZE must be positive")
	}
	return nil
}

// BufferTargetBytes is the raw buffer size that triggers transcription.
func (c *Configuration) BufferTargetBytes() int {
	return int(c.BufferSeconds * float64(c.SampleRate*c.Channels*2))
}

func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
