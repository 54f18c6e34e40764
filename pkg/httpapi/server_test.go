package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfish0/happyChatty/pkg/audio"
	"github.com/webfish0/happyChatty/pkg/config"
	"github.com/webfish0/happyChatty/pkg/events"
	"github.com/webfish0/happyChatty/pkg/pipeline"
	"github.com/webfish0/happyChatty/pkg/sentiment"
	"github.com/webfish0/happyChatty/pkg/telemetry"
	"github.com/webfish0/happyChatty/pkg/transcribe"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := &config.Configuration{
		SampleRate:    16000,
		Channels:      1,
		BufferSeconds: 3.0,
		CacheSize:     10,
	}
	hub := events.NewHub(logger, events.DefaultHubConfig())
	profiler := telemetry.NewProfiler()
	orchestrator := pipeline.New(logger, pipeline.Options{
		Config:   cfg,
		Source:   audio.NewSyntheticSource(logger, audio.DefaultSyntheticConfig()),
		Engine:   transcribe.NewMockEngine(logger),
		Analyzer: sentiment.NewLexiconAnalyzer(),
		Hub:      hub,
		Profiler: profiler,
	})
	t.Cleanup(orchestrator.Stop)

	return New(logger, 0, orchestrator, hub, profiler, 100*time.Millisecond)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, 0, status.CacheSize)
}

func TestTelemetryEndpoint(t *testing.T) {
	s := testServer(t)
	s.profiler.End(s.profiler.Begin("transcription", "transcribe_audio"), nil)

	rec := httptest.NewRecorder()
	s.handleTelemetry(rec, httptest.NewRequest("GET", "/telemetry", nil))

	assert.Equal(t, 200, rec.Code)
	var snapshot telemetry.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 1, snapshot.TotalEvents)
	assert.Contains(t, snapshot.Components, "transcription")
}

func TestBroadcastLoopStopsOnCancel(t *testing.T) {
	s := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.broadcastTelemetry(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry loop did not stop")
	}
}
