package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/metrics"
)

// SyntheticConfig configures the generated test tone.
type SyntheticConfig struct {
	Format        Format
	ChunkDuration time.Duration
	Frequency     float64
	Amplitude     float64
	QueueSize     int
}

// DefaultSyntheticConfig returns a 16kHz mono source emitting 100ms
// chunks of a 440Hz tone.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Format:        Format{SampleRate: 16000, Channels: 1},
		ChunkDuration: 100 * time.Millisecond,
		Frequency:     440,
		Amplitude:     0.3,
		QueueSize:     32,
	}
}

// SyntheticSource generates a continuous sine tone on its own
// goroutine, standing in for a hardware capture device. When the
// consumer falls behind, chunks are dropped rather than blocking the
// producer.
type SyntheticSource struct {
	logger *logrus.Entry
	config SyntheticConfig

	chunks  chan []byte
	done    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	state   sourceState
	dropped atomic.Int64
	phase   float64
}

type sourceState int

const (
	sourceIdle sourceState = iota
	sourceRunning
	sourceStopped
)

// NewSyntheticSource creates an unstarted synthetic source.
func NewSyntheticSource(logger *logrus.Logger, config SyntheticConfig) *SyntheticSource {
	if config.Format.SampleRate <= 0 {
		config.Format = DefaultSyntheticConfig().Format
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = DefaultSyntheticConfig().ChunkDuration
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultSyntheticConfig().QueueSize
	}
	return &SyntheticSource{
		logger:  logger.WithField("component", "audio_source"),
		config:  config,
		chunks:  make(chan []byte, config.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the generator goroutine.
func (s *SyntheticSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sourceIdle {
		return nil
	}
	s.state = sourceRunning
	s.logger.WithFields(logrus.Fields{
		"sample_rate": s.config.Format.SampleRate,
		"channels":    s.config.Format.Channels,
	}).Info("Starting synthetic audio source")
	go s.run()
	return nil
}

// Stop signals the generator to exit and waits for it. The chunk
// channel is closed once the generator has exited. Safe to call
// repeatedly or before Start.
func (s *SyntheticSource) Stop() {
	s.mu.Lock()
	prev := s.state
	s.state = sourceStopped
	if prev != sourceStopped {
		close(s.done)
	}
	if prev == sourceIdle {
		// No generator to wait for.
		close(s.chunks)
		close(s.stopped)
	}
	s.mu.Unlock()
	<-s.stopped
}

// Chunks returns the hand-off channel.
func (s *SyntheticSource) Chunks() <-chan []byte {
	return s.chunks
}

// Format returns the PCM layout.
func (s *SyntheticSource) Format() Format {
	return s.config.Format
}

// Dropped returns how many chunks were discarded because the consumer
// fell behind.
func (s *SyntheticSource) Dropped() int64 {
	return s.dropped.Load()
}

func (s *SyntheticSource) run() {
	defer close(s.stopped)
	defer close(s.chunks)

	ticker := time.NewTicker(s.config.ChunkDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			select {
			case s.chunks <- s.generateChunk():
			default:
				metrics.AudioChunksDropped.Inc()
				if s.dropped.Add(1)%100 == 1 {
					s.logger.WithField("dropped", s.dropped.Load()).Warn("Audio consumer falling behind, dropping chunks")
				}
			}
		}
	}
}

func (s *SyntheticSource) generateChunk() []byte {
	format := s.config.Format
	samples := int(float64(format.SampleRate) * s.config.ChunkDuration.Seconds())
	chunk := make([]byte, samples*format.Channels*2)

	step := 2 * math.Pi * s.config.Frequency / float64(format.SampleRate)
	for i := 0; i < samples; i++ {
		value := int16(s.config.Amplitude * 32767 * math.Sin(s.phase))
		s.phase += step
		for c := 0; c < format.Channels; c++ {
			offset := (i*format.Channels + c) * 2
			binary.LittleEndian.PutUint16(chunk[offset:], uint16(value))
		}
	}
	if s.phase > 2*math.Pi {
		s.phase -= 2 * math.Pi * math.Floor(s.phase/(2*math.Pi))
	}
	return chunk
}
