// Package transcribe turns buffered raw PCM audio into ordered,
// speaker-labeled transcript fragments.
package transcribe

import "context"

// Fragment is one transcribed, speaker-labeled span of a processed
// audio buffer. Offsets are seconds relative to the buffer start.
type Fragment struct {
	Text        string  `json:"text"`
	Speaker     string  `json:"speaker"`
	StartOffset float64 `json:"start"`
	EndOffset   float64 `json:"end"`
	Confidence  float64 `json:"confidence"`
}

// Engine converts a raw PCM buffer into an ordered list of fragments.
// An empty list is a valid result for silent or unintelligible audio.
type Engine interface {
	Transcribe(ctx context.Context, pcm []byte) ([]Fragment, error)
	Name() string
}

// BufferDuration returns the playback length in seconds of a raw
// 16-bit PCM buffer.
func BufferDuration(pcm []byte, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(len(pcm)) / float64(sampleRate*channels*2)
}
