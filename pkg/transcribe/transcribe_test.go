package transcribe

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 32000) // 1 second at 16kHz mono 16-bit
	wav := EncodeWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))     // channels
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28])) // sample rate
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32])) // byte rate
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))    // bits per sample
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestBufferDuration(t *testing.T) {
	assert.Equal(t, 3.0, BufferDuration(make([]byte, 96000), 16000, 1))
	assert.Equal(t, 0.0, BufferDuration(make([]byte, 100), 0, 1))
}

func TestHTTPEngineSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "audio.wav", header.Filename)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"text": "hello there world",
			"segments": []map[string]interface{}{
				{"text": "hello there", "speaker": "SPEAKER_01", "start": 0.0, "end": 1.2, "confidence": 0.9},
				{"text": "world", "start": 1.4, "end": 2.0},
			},
		})
	}))
	defer srv.Close()

	engine := NewHTTPEngine(testLogger(), HTTPEngineConfig{URL: srv.URL})
	fragments, err := engine.Transcribe(context.Background(), make([]byte, 96000))
	require.NoError(t, err)
	require.Len(t, fragments, 2)

	assert.Equal(t, "hello there", fragments[0].Text)
	assert.Equal(t, "SPEAKER_01", fragments[0].Speaker)
	assert.Equal(t, 0.9, fragments[0].Confidence)

	// Missing speaker and confidence fall back to defaults.
	assert.Equal(t, DefaultSpeaker, fragments[1].Speaker)
	assert.Equal(t, 0.8, fragments[1].Confidence)
	assert.Equal(t, 1.4, fragments[1].StartOffset)
}

func TestHTTPEngineFlatText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "just some words"})
	}))
	defer srv.Close()

	engine := NewHTTPEngine(testLogger(), HTTPEngineConfig{URL: srv.URL})
	fragments, err := engine.Transcribe(context.Background(), make([]byte, 96000))
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "just some words", fragments[0].Text)
	assert.Equal(t, 3.0, fragments[0].EndOffset)
}

func TestHTTPEngineErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(testLogger(), HTTPEngineConfig{URL: srv.URL})
	_, err := engine.Transcribe(context.Background(), make([]byte, 100))
	assert.Error(t, err)
}

func TestMockEngineRotates(t *testing.T) {
	engine := NewMockEngine(testLogger())

	first, err := engine.Transcribe(context.Background(), make([]byte, 96000))
	require.NoError(t, err)
	second, err := engine.Transcribe(context.Background(), make([]byte, 96000))
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Text, second[0].Text)
	assert.Equal(t, 3.0, first[0].EndOffset)

	empty, err := engine.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
