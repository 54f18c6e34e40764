package transcribe

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// mockPhrases rotate through successive mock transcriptions.
var mockPhrases = []string{
	"Hello, this is a test transcription.",
	"The quick brown fox jumps over the lazy dog.",
	"Real-time transcription allows for immediate analysis of conversations.",
	"I am really happy with how this turned out.",
	"Honestly this has been a terrible and frustrating week.",
	"The meeting is scheduled for three o'clock tomorrow.",
}

// MockEngine returns canned transcriptions for demos and tests. Each
// call yields the next phrase as a single fragment spanning the buffer.
type MockEngine struct {
	logger *logrus.Entry

	mu    sync.Mutex
	index int

	SampleRate int
	Channels   int
}

// NewMockEngine creates a mock transcription engine.
func NewMockEngine(logger *logrus.Logger) *MockEngine {
	return &MockEngine{
		logger:     logger.WithField("component", "transcription"),
		SampleRate: 16000,
		Channels:   1,
	}
}

// Name returns the engine name.
func (e *MockEngine) Name() string {
	return "mock"
}

// Transcribe implements Engine.
func (e *MockEngine) Transcribe(_ context.Context, pcm []byte) ([]Fragment, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	phrase := mockPhrases[e.index%len(mockPhrases)]
	e.index++
	e.mu.Unlock()

	fragment := Fragment{
		Text:        phrase,
		Speaker:     DefaultSpeaker,
		StartOffset: 0,
		EndOffset:   BufferDuration(pcm, e.SampleRate, e.Channels),
		Confidence:  0.95,
	}
	e.logger.WithField("transcription", phrase).Debug("Mock transcription generated")
	return []Fragment{fragment}, nil
}
