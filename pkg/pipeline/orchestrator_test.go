package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfish0/happyChatty/pkg/audio"
	"github.com/webfish0/happyChatty/pkg/config"
	"github.com/webfish0/happyChatty/pkg/events"
	"github.com/webfish0/happyChatty/pkg/sentiment"
	"github.com/webfish0/happyChatty/pkg/telemetry"
	"github.com/webfish0/happyChatty/pkg/transcribe"
)

type fakeSource struct {
	ch       chan []byte
	stopOnce sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 8)}
}

func (f *fakeSource) Start() error        { return nil }
func (f *fakeSource) Stop()               { f.stopOnce.Do(func() { close(f.ch) }) }
func (f *fakeSource) Chunks() <-chan []byte { return f.ch }
func (f *fakeSource) Format() audio.Format {
	return audio.Format{SampleRate: 16000, Channels: 1}
}

type stubEngine struct {
	mu        sync.Mutex
	calls     int
	fragments []transcribe.Fragment
	failFirst bool
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Transcribe(_ context.Context, pcm []byte) ([]transcribe.Fragment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failFirst && e.calls == 1 {
		return nil, errors.New("transcription backend down")
	}
	return e.fragments, nil
}

func (e *stubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubAnalyzer struct {
	calls atomic.Int64
	fail  bool
}

func (a *stubAnalyzer) Analyze(_ context.Context, text, speaker string) (sentiment.Scores, error) {
	a.calls.Add(1)
	if a.fail {
		return nil, errors.New("sentiment backend down")
	}
	scores := sentiment.NewScores()
	scores["Happy"] = 0.9
	return scores, nil
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		SampleRate:    16000,
		Channels:      1,
		BufferSeconds: 3.0,
		MinPause:      500 * time.Millisecond,
		MaxUtterance:  10 * time.Second,
		MinUtterance:  300 * time.Millisecond,
		IdleTimeout:   time.Millisecond,
		CacheSize:     10,
	}
}

func buildPipeline(t *testing.T, engine transcribe.Engine, analyzer sentiment.Analyzer) (*Orchestrator, *fakeSource, *events.Hub) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	source := newFakeSource()
	hub := events.NewHub(logger, events.DefaultHubConfig())
	o := New(logger, Options{
		Config:   testConfig(),
		Source:   source,
		Engine:   engine,
		Analyzer: analyzer,
		Hub:      hub,
		Profiler: telemetry.NewProfiler(),
	})
	t.Cleanup(o.Stop)
	return o, source, hub
}

// voicedChunk fills a PCM buffer with a square wave loud enough to
// register as voice activity.
func voicedChunk(size int) []byte {
	chunk := make([]byte, size)
	for i := 0; i+1 < size; i += 2 {
		sample := int16(8000)
		if i%4 == 0 {
			sample = -8000
		}
		chunk[i] = byte(sample)
		chunk[i+1] = byte(sample >> 8)
	}
	return chunk
}

func utteranceFragments(text string) []transcribe.Fragment {
	return []transcribe.Fragment{{
		Text:        text,
		Speaker:     "S1",
		StartOffset: 0,
		EndOffset:   2.0,
		Confidence:  0.9,
	}}
}

func TestPipelineEndToEnd(t *testing.T) {
	engine := &stubEngine{fragments: utteranceFragments("hello there world")}
	analyzer := &stubAnalyzer{}
	o, source, hub := buildPipeline(t, engine, analyzer)

	require.NoError(t, o.Start())
	assert.True(t, o.Status().Running)

	source.ch <- voicedChunk(96000)

	require.Eventually(t, func() bool {
		return hub.Stats().TotalEvents == 1
	}, 3*time.Second, 10*time.Millisecond)

	history := hub.History()
	require.Len(t, history, 1)
	assert.Equal(t, "hello there world", history[0].Text)
	assert.Equal(t, "S1", history[0].Speaker)
	assert.Equal(t, 0.9, history[0].Sentiment["Happy"])
	assert.InDelta(t, 2.0, history[0].Duration, 0.01)

	o.Stop()
	assert.False(t, o.Status().Running)
}

func TestTranscriptionFailureIsNonFatal(t *testing.T) {
	engine := &stubEngine{fragments: utteranceFragments("recovered fine"), failFirst: true}
	o, source, hub := buildPipeline(t, engine, &stubAnalyzer{})

	require.NoError(t, o.Start())

	// First buffer fails to transcribe; the loop must survive it.
	source.ch <- voicedChunk(96000)
	source.ch <- voicedChunk(96000)

	require.Eventually(t, func() bool {
		return hub.Stats().TotalEvents == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "recovered fine", hub.History()[0].Text)
}

func TestSentimentFallbackOnFailure(t *testing.T) {
	engine := &stubEngine{fragments: utteranceFragments("what a great and happy day")}
	analyzer := &stubAnalyzer{fail: true}
	o, source, hub := buildPipeline(t, engine, analyzer)

	require.NoError(t, o.Start())
	source.ch <- voicedChunk(96000)

	require.Eventually(t, func() bool {
		return hub.Stats().TotalEvents == 1
	}, 3*time.Second, 10*time.Millisecond)

	// The lexicon fallback scored the positive words.
	event := hub.History()[0]
	assert.Greater(t, event.Sentiment["Happy"], 0.0)
}

func TestCacheSkipsRepeatAnalysis(t *testing.T) {
	engine := &stubEngine{fragments: utteranceFragments("same words again")}
	analyzer := &stubAnalyzer{}
	o, source, hub := buildPipeline(t, engine, analyzer)

	require.NoError(t, o.Start())
	source.ch <- voicedChunk(96000)
	source.ch <- voicedChunk(96000)

	require.Eventually(t, func() bool {
		return hub.Stats().TotalEvents == 2
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), analyzer.calls.Load())
	assert.Equal(t, 1, o.Status().CacheSize)
}

func TestSilentBufferSkipsTranscription(t *testing.T) {
	engine := &stubEngine{fragments: utteranceFragments("should never surface")}
	analyzer := &stubAnalyzer{}
	o, source, hub := buildPipeline(t, engine, analyzer)

	require.NoError(t, o.Start())
	source.ch <- make([]byte, 96000) // all zeros, no voice activity

	// Follow with a voiced buffer so we can observe the loop advanced
	// past the silent one without transcribing it.
	source.ch <- voicedChunk(96000)

	require.Eventually(t, func() bool {
		return hub.Stats().TotalEvents == 1
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, engine.Calls())
}

func TestStopIsIdempotentAndSafeBeforeStart(t *testing.T) {
	engine := &stubEngine{}
	o, _, _ := buildPipeline(t, engine, &stubAnalyzer{})

	o.Stop()
	o.Stop()
	assert.False(t, o.Status().Running)
}

func TestStartAfterStopIsRejected(t *testing.T) {
	engine := &stubEngine{}
	o, _, _ := buildPipeline(t, engine, &stubAnalyzer{})

	o.Stop()

	require.Error(t, o.Start())
	assert.False(t, o.Status().Running)
}
