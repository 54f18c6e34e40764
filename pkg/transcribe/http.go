package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSpeaker labels fragments from engines that do not diarize.
const DefaultSpeaker = "SPEAKER_00"

// HTTPEngineConfig configures the remote transcription client.
type HTTPEngineConfig struct {
	URL        string
	APIKey     string
	Model      string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

// HTTPEngine sends buffered audio to a Whisper-style transcription API.
// The buffer is wrapped in a WAV container and uploaded as a multipart
// form; the response may carry per-segment timing or just flat text.
type HTTPEngine struct {
	logger *logrus.Entry
	config HTTPEngineConfig
	client *http.Client
}

// NewHTTPEngine creates a remote transcription engine.
func NewHTTPEngine(logger *logrus.Logger, config HTTPEngineConfig) *HTTPEngine {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPEngine{
		logger: logger.WithField("component", "transcription"),
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the engine name.
func (e *HTTPEngine) Name() string {
	return "http"
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text       string  `json:"text"`
		Speaker    string  `json:"speaker"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"segments"`
}

// Transcribe implements Engine.
func (e *HTTPEngine) Transcribe(ctx context.Context, pcm []byte) ([]Fragment, error) {
	if len(pcm) == 0 {
		return nil, nil
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(EncodeWAV(pcm, e.config.SampleRate, e.config.Channels)); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if e.config.Model != "" {
		if err := form.WriteField("model", e.config.Model); err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription API status %d", resp.StatusCode)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding transcription response: %w", err)
	}

	fragments := e.toFragments(parsed, pcm)
	e.logger.WithFields(logrus.Fields{
		"audio_bytes": len(pcm),
		"fragments":   len(fragments),
	}).Debug("Transcription completed")
	return fragments, nil
}

func (e *HTTPEngine) toFragments(parsed transcriptionResponse, pcm []byte) []Fragment {
	if len(parsed.Segments) > 0 {
		fragments := make([]Fragment, 0, len(parsed.Segments))
		for _, seg := range parsed.Segments {
			if seg.Text == "" {
				continue
			}
			speaker := seg.Speaker
			if speaker == "" {
				speaker = DefaultSpeaker
			}
			confidence := seg.Confidence
			if confidence <= 0 {
				confidence = 0.8
			}
			fragments = append(fragments, Fragment{
				Text:        seg.Text,
				Speaker:     speaker,
				StartOffset: seg.Start,
				EndOffset:   seg.End,
				Confidence:  confidence,
			})
		}
		return fragments
	}

	if parsed.Text == "" {
		return nil
	}
	// Flat-text responses become a single fragment spanning the buffer.
	return []Fragment{{
		Text:        parsed.Text,
		Speaker:     DefaultSpeaker,
		StartOffset: 0,
		EndOffset:   BufferDuration(pcm, e.config.SampleRate, e.config.Channels),
		Confidence:  0.8,
	}}
}
