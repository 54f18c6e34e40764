package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcmFrame(sample int16, samples int) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		frame[2*i] = byte(sample)
		frame[2*i+1] = byte(sample >> 8)
	}
	return frame
}

func TestVADDetectsVoice(t *testing.T) {
	vad := NewVAD(DefaultVADConfig())

	assert.False(t, vad.Observe(pcmFrame(0, 160)))
	assert.False(t, vad.Active())

	assert.True(t, vad.Observe(pcmFrame(8000, 160)))
	assert.True(t, vad.Active())
}

func TestVADHoldBridgesShortPauses(t *testing.T) {
	vad := NewVAD(VADConfig{Threshold: 0.001, HoldFrames: 3})

	assert.True(t, vad.Observe(pcmFrame(8000, 160)))

	// Silence stays "voiced" for HoldFrames frames, then drops.
	for i := 0; i < 3; i++ {
		assert.True(t, vad.Observe(pcmFrame(0, 160)), "hold frame %d", i)
	}
	assert.False(t, vad.Observe(pcmFrame(0, 160)))
	assert.False(t, vad.Active())
}

func TestVADNoiseFloorAdapts(t *testing.T) {
	vad := NewVAD(VADConfig{Threshold: 0.001, HoldFrames: 1})
	initial := vad.NoiseFloor()

	// Sustained low-level hum raises the floor estimate.
	for i := 0; i < 50; i++ {
		vad.Observe(pcmFrame(500, 160))
	}
	assert.Greater(t, vad.NoiseFloor(), initial)

	// Loud speech still clears the adapted threshold.
	assert.True(t, vad.Observe(pcmFrame(8000, 160)))
}

func TestVADReset(t *testing.T) {
	vad := NewVAD(DefaultVADConfig())
	vad.Observe(pcmFrame(8000, 160))
	assert.True(t, vad.Active())

	vad.Reset()
	assert.False(t, vad.Active())
	assert.False(t, vad.Observe(pcmFrame(0, 160)))
}

func TestVADEmptyFrame(t *testing.T) {
	vad := NewVAD(DefaultVADConfig())
	assert.False(t, vad.Observe(nil))
}
