package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	logger := logrus.New()
	config, err := Load(logger)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.HTTPPort)
	assert.Equal(t, 16000, config.SampleRate)
	assert.Equal(t, 1, config.Channels)
	assert.Equal(t, 3.0, config.BufferSeconds)
	assert.Equal(t, 500*time.Millisecond, config.MinPause)
	assert.Equal(t, 10*time.Second, config.MaxUtterance)
	assert.Equal(t, 2*time.Second, config.IdleTimeout)
	assert.Equal(t, 1000, config.CacheSize)
	assert.Equal(t, 10, config.ReplayCount)
	assert.Equal(t, 100*time.Millisecond, config.TelemetryInterval)
	assert.Equal(t, "analysis_events", config.AMQPQueueName)
	assert.Equal(t, logrus.InfoLevel, config.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("AUDIO_BUFFER_SECONDS", "1.5")
	t.Setenv("SEGMENT_MIN_PAUSE", "750ms")
	t.Setenv("SENTIMENT_CACHE_SIZE", "50")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := Load(logrus.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, config.HTTPPort)
	assert.Equal(t, 1.5, config.BufferSeconds)
	assert.Equal(t, 750*time.Millisecond, config.MinPause)
	assert.Equal(t, 50, config.CacheSize)
	assert.Equal(t, logrus.DebugLevel, config.LogLevel)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("SEGMENT_MIN_PAUSE", "garbage")

	config, err := Load(logrus.New())
	require.NoError(t, err)
	assert.Equal(t, 8080, config.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, config.MinPause)
}

func TestLoadInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "shouting")
	_, err := Load(logrus.New())
	assert.Error(t, err)
}

func TestValidationRejectsBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")
	_, err := Load(logrus.New())
	assert.Error(t, err)
}

func TestBufferTargetBytes(t *testing.T) {
	c := &Configuration{SampleRate: 16000, Channels: 1, BufferSeconds: 3.0}
	assert.Equal(t, 96000, c.BufferTargetBytes())
}
