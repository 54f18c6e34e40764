package audio

import "math"

// VADConfig tunes the voice activity detector.
type VADConfig struct {
	// Threshold is the minimum per-sample energy treated as speech.
	Threshold float64
	// HoldFrames keeps the detector active for this many silent
	// frames after energy drops, bridging short pauses.
	HoldFrames int
}

// DefaultVADConfig suits 16-bit speech at conversational levels.
func DefaultVADConfig() VADConfig {
	return VADConfig{Threshold: 0.001, HoldFrames: 5}
}

// VAD is an energy-based voice activity detector with an adaptive
// noise floor. It is owned by the pipeline loop and not safe for
// concurrent use.
type VAD struct {
	config VADConfig

	active     bool
	holdLeft   int
	noiseFloor float64
}

// NewVAD creates a detector with an initial noise floor estimate.
func NewVAD(config VADConfig) *VAD {
	if config.Threshold <= 0 {
		config.Threshold = DefaultVADConfig().Threshold
	}
	if config.HoldFrames <= 0 {
		config.HoldFrames = DefaultVADConfig().HoldFrames
	}
	return &VAD{
		config:     config,
		noiseFloor: 0.0001,
	}
}

// Observe feeds one PCM frame and reports whether it carries voice.
// The noise floor adapts slowly during silence so low-level speech is
// not suppressed.
func (v *VAD) Observe(frame []byte) bool {
	energy := frameEnergy(frame)
	threshold := math.Max(v.config.Threshold, v.noiseFloor*2)

	if energy > threshold {
		v.active = true
		v.holdLeft = v.config.HoldFrames
		return true
	}
	if v.holdLeft > 0 {
		v.holdLeft--
		v.active = true
		return true
	}
	v.active = false
	v.noiseFloor = 0.99*v.noiseFloor + 0.01*energy
	return false
}

// Active returns the detector's current state.
func (v *VAD) Active() bool {
	return v.active
}

// NoiseFloor returns the current noise floor estimate.
func (v *VAD) NoiseFloor() float64 {
	return v.noiseFloor
}

// Reset returns the detector to silence.
func (v *VAD) Reset() {
	v.active = false
	v.holdLeft = 0
}

// frameEnergy is the mean squared sample value, normalized to [0,1].
func frameEnergy(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}
	var total float64
	for i := 0; i < samples; i++ {
		sample := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		normalized := float64(sample) / 32768.0
		total += normalized * normalized
	}
	return total / float64(samples)
}
