// Package audio defines the raw PCM chunk source consumed by the
// pipeline and a synthetic source for demos and tests.
package audio

import "math"

// Source produces an unbounded sequence of raw PCM chunks on a
// background goroutine. Chunks returns the hand-off channel; it is
// closed after Stop once the producer has exited.
type Source interface {
	Start() error
	Stop()
	Chunks() <-chan []byte
	Format() Format
}

// Format describes the PCM layout of a source's chunks.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the raw byte rate for 16-bit samples.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Level computes the loudness of a 16-bit little-endian PCM chunk as
// RMS normalized by the int16 maximum, clamped to [0,1].
func Level(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	samples := len(chunk) / 2
	for i := 0; i < samples*2; i += 2 {
		sample := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
		v := float64(sample)
		sum += v * v
	}
	rms := math.Sqrt(sum/float64(samples)) / 32767.0
	if rms > 1 {
		return 1
	}
	return rms
}
