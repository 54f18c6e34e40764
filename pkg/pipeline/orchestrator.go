// Package pipeline drives the full analysis flow: buffered audio in,
// scored utterance events out.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/audio"
	"github.com/webfish0/happyChatty/pkg/config"
	"github.com/webfish0/happyChatty/pkg/events"
	"github.com/webfish0/happyChatty/pkg/metrics"
	"github.com/webfish0/happyChatty/pkg/segmenter"
	"github.com/webfish0/happyChatty/pkg/sentiment"
	"github.com/webfish0/happyChatty/pkg/telemetry"
	"github.com/webfish0/happyChatty/pkg/transcribe"
)

const (
	timeoutCheckInterval = 500 * time.Millisecond
	stopJoinTimeout      = 5 * time.Second
)

// Options wires the orchestrator's collaborators.
type Options struct {
	Config   *config.Configuration
	Source   audio.Source
	Engine   transcribe.Engine
	Analyzer sentiment.Analyzer
	Hub      *events.Hub
	Profiler *telemetry.Profiler

	// AttachTelemetry embeds a telemetry snapshot in every event.
	AttachTelemetry bool
}

// Orchestrator owns the single processing loop. All segmenter and
// cache mutation happens on that loop; the audio source runs on its
// own goroutine and hands chunks over through a channel.
type Orchestrator struct {
	logger   *logrus.Entry
	config   *config.Configuration
	source   audio.Source
	engine   transcribe.Engine
	analyzer sentiment.Analyzer
	fallback *sentiment.LexiconAnalyzer
	seg      *segmenter.Segmenter
	cache    *sentiment.Cache
	hub      *events.Hub
	profiler *telemetry.Profiler
	vad      *audio.VAD

	attachTelemetry bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	running   bool
	mu        sync.Mutex
}

// New assembles an orchestrator from its collaborators.
func New(logger *logrus.Logger, opts Options) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:   logger.WithField("component", "pipeline"),
		config:   opts.Config,
		source:   opts.Source,
		engine:   opts.Engine,
		analyzer: opts.Analyzer,
		fallback: sentiment.NewLexiconAnalyzer(),
		seg: segmenter.New(logger, segmenter.Config{
			MinPause:     opts.Config.MinPause,
			MaxUtterance: opts.Config.MaxUtterance,
			MinUtterance: opts.Config.MinUtterance,
			IdleTimeout:  opts.Config.IdleTimeout,
		}),
		cache:           sentiment.NewCache(opts.Config.CacheSize),
		vad:             audio.NewVAD(audio.DefaultVADConfig()),
		hub:             opts.Hub,
		profiler:        opts.Profiler,
		attachTelemetry: opts.AttachTelemetry,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

// Start launches the audio source and the processing loop. Starting
// an orchestrator that was already stopped is an error.
func (o *Orchestrator) Start() error {
	var err error
	o.startOnce.Do(func() {
		if o.ctx.Err() != nil {
			err = errors.New("pipeline already stopped")
			return
		}
		if err = o.source.Start(); err != nil {
			return
		}
		o.mu.Lock()
		o.running = true
		o.mu.Unlock()
		o.logger.WithField("buffer_bytes", o.config.BufferTargetBytes()).Info("Pipeline started")
		go o.run()
	})
	return err
}

func (o *Orchestrator) run() {
	defer close(o.done)

	target := o.config.BufferTargetBytes()
	buffer := make([]byte, 0, target)
	hasVoice := false
	chunks := o.source.Chunks()

	ticker := time.NewTicker(timeoutCheckInterval)
	defer ticker.Stop()

	flush := func() {
		if hasVoice {
			o.processBuffer(buffer)
		} else {
			o.logger.WithField("bytes", len(buffer)).Debug("No voice activity in buffer, skipping transcription")
		}
		buffer = buffer[:0]
		hasVoice = false
	}

	for {
		select {
		case <-o.ctx.Done():
			return

		case chunk, ok := <-chunks:
			if !ok {
				// Source exhausted; flush whatever is buffered.
				if len(buffer) > 0 {
					flush()
				}
				chunks = nil
				continue
			}
			if o.vad.Observe(chunk) {
				hasVoice = true
			}
			buffer = append(buffer, chunk...)
			if len(buffer) >= target {
				flush()
			}

		case <-ticker.C:
			if utterance := o.seg.CheckTimeout(); utterance != nil {
				o.handleUtterance(*utterance)
			}
		}
	}
}

// processBuffer runs one buffer through transcription and segmentation.
func (o *Orchestrator) processBuffer(buffer []byte) {
	format := o.source.Format()
	duration := transcribe.BufferDuration(buffer, format.SampleRate, format.Channels)
	// The buffer ends now, so fragment offsets anchor at its start.
	anchor := time.Now().Add(-time.Duration(duration * float64(time.Second)))

	token := o.profiler.Begin("transcription", "transcribe_audio")
	fragments, err := o.engine.Transcribe(o.ctx, buffer)
	sample, _ := o.profiler.End(token, errMetadata(err, map[string]interface{}{"audio_size": len(buffer)}))
	metrics.StageDuration.WithLabelValues("transcription").Observe(sample.DurationMs / 1000)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("transcription").Inc()
		o.logger.WithError(err).Error("Transcription failed, skipping buffer")
		fragments = nil
	}

	segToken := o.profiler.Begin("utterance_segmentation", "process_fragments")
	utterances := o.seg.ProcessFragments(anchor, fragments)
	segSample, _ := o.profiler.End(segToken, map[string]interface{}{"fragments": len(fragments)})
	metrics.StageDuration.WithLabelValues("segmentation").Observe(segSample.DurationMs / 1000)

	for _, utterance := range utterances {
		o.handleUtterance(utterance)
	}
}

// handleUtterance scores one finalized utterance and emits its event.
func (o *Orchestrator) handleUtterance(utterance segmenter.Utterance) {
	metrics.UtterancesFinalized.Inc()

	scores, hit := o.cache.Get(utterance.Text, utterance.Speaker)
	if hit {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
		scores = o.analyze(utterance)
		o.cache.Set(utterance.Text, utterance.Speaker, scores)
	}

	var snapshot *telemetry.Snapshot
	if o.attachTelemetry {
		s := o.profiler.GroupedSnapshot()
		snapshot = &s
	}
	event := events.NewAnalysisEvent(utterance, scores, snapshot)

	token := o.profiler.Begin("event_emission", "emit")
	o.hub.Emit(event)
	sample, _ := o.profiler.End(token, nil)
	metrics.StageDuration.WithLabelValues("emission").Observe(sample.DurationMs / 1000)
}

// analyze calls the sentiment collaborator, dropping to the
// deterministic lexicon scorer when it fails.
func (o *Orchestrator) analyze(utterance segmenter.Utterance) sentiment.Scores {
	token := o.profiler.Begin("sentiment_analysis", "analyze")
	scores, err := o.analyzer.Analyze(o.ctx, utterance.Text, utterance.Speaker)
	sample, _ := o.profiler.End(token, errMetadata(err, nil))
	metrics.StageDuration.WithLabelValues("sentiment").Observe(sample.DurationMs / 1000)

	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("sentiment").Inc()
		o.logger.WithError(err).Warn("Sentiment analysis failed, using lexicon fallback")
		return o.fallback.Score(utterance.Text)
	}
	return scores
}

// Stop shuts the pipeline down. Idempotent and safe before Start.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.cancel()

		// The source may block on hardware; join it with a bound and
		// abandon it if it does not come back.
		stopped := make(chan struct{})
		go func() {
			o.source.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(stopJoinTimeout):
			o.logger.Warn("Audio source did not stop in time, abandoning it")
		}

		o.mu.Lock()
		started := o.running
		o.running = false
		o.mu.Unlock()

		if started {
			select {
			case <-o.done:
			case <-time.After(stopJoinTimeout):
				o.logger.Warn("Processing loop did not exit in time")
			}
		}

		if err := o.hub.Close(); err != nil {
			o.logger.WithError(err).Error("Failed to close event hub")
		}
		o.logger.Info("Pipeline stopped")
	})
}

// Status describes the pipeline's externally visible state. The
// segmenter is owned by the processing loop and deliberately not
// exposed here.
type Status struct {
	Running   bool         `json:"running"`
	Events    events.Stats `json:"events"`
	CacheSize int          `json:"cache_size"`
}

// Status returns a point-in-time view of the pipeline.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	running := o.running
	o.mu.Unlock()
	return Status{
		Running:   running,
		Events:    o.hub.Stats(),
		CacheSize: o.cache.Size(),
	}
}

func errMetadata(err error, metadata map[string]interface{}) map[string]interface{} {
	if err == nil {
		return metadata
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["error"] = err.Error()
	return metadata
}
