package segmenter

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/metrics"
	"github.com/webfish0/happyChatty/pkg/transcribe"
)

// Config holds the segmentation thresholds.
type Config struct {
	// MinPause is the silent gap that forces an utterance boundary.
	MinPause time.Duration
	// MaxUtterance caps how long a single utterance may grow.
	MaxUtterance time.Duration
	// MinUtterance is the shortest utterance worth emitting.
	MinUtterance time.Duration
	// IdleTimeout finalizes an open utterance when no fragments arrive.
	IdleTimeout time.Duration
}

// DefaultConfig returns the standard segmentation thresholds.
func DefaultConfig() Config {
	return Config{
		MinPause:     500 * time.Millisecond,
		MaxUtterance: 10 * time.Second,
		MinUtterance: 300 * time.Millisecond,
		IdleTimeout:  2 * time.Second,
	}
}

// fillerWords are stripped from finalized text as whole words.
var fillerWords = map[string]bool{
	"uh": true, "um": true, "like": true, "so": true, "actually": true,
}

// Segmenter is a two-state machine over an ordered fragment stream:
// idle (no open utterance) or accumulating (exactly one). It is not
// safe for concurrent use; the pipeline owns it exclusively.
type Segmenter struct {
	logger *logrus.Entry
	config Config
	now    func() time.Time

	current      *Utterance
	lastActivity time.Time

	finalizedCount int64
	discardedCount int64
}

// New creates a segmenter in the idle state.
func New(logger *logrus.Logger, config Config) *Segmenter {
	if config.MinPause <= 0 {
		config.MinPause = DefaultConfig().MinPause
	}
	if config.MaxUtterance <= 0 {
		config.MaxUtterance = DefaultConfig().MaxUtterance
	}
	if config.MinUtterance <= 0 {
		config.MinUtterance = DefaultConfig().MinUtterance
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &Segmenter{
		logger: logger.WithField("component", "segmenter"),
		config: config,
		now:    time.Now,
	}
}

// ProcessFragments routes a batch of fragments through the state
// machine and returns any utterances finalized along the way. The
// anchor maps the fragments' relative offsets onto wall-clock time.
// Fragments are consumed strictly in slice order.
func (s *Segmenter) ProcessFragments(anchor time.Time, fragments []transcribe.Fragment) []Utterance {
	var finalized []Utterance

	for _, fragment := range fragments {
		start := anchor.Add(secondsToDuration(fragment.StartOffset))
		end := anchor.Add(secondsToDuration(fragment.EndOffset))

		if s.shouldStartNew(fragment.Speaker, start, end) {
			if utterance := s.finalize(); utterance != nil {
				finalized = append(finalized, *utterance)
			}
			s.current = &Utterance{
				Speaker:    fragment.Speaker,
				Text:       fragment.Text,
				StartTime:  start,
				EndTime:    end,
				Confidence: fragment.Confidence,
			}
		} else {
			s.merge(fragment.Text, end, fragment.Confidence)
		}

		s.lastActivity = end
	}

	if utterance := s.CheckTimeout(); utterance != nil {
		finalized = append(finalized, *utterance)
	}
	return finalized
}

// CheckTimeout finalizes the open utterance if it has been idle past
// the timeout. Returns nil when nothing was emitted.
func (s *Segmenter) CheckTimeout() *Utterance {
	if s.current == nil || s.lastActivity.IsZero() {
		return nil
	}
	if s.now().Sub(s.lastActivity) < s.config.IdleTimeout {
		return nil
	}
	return s.finalize()
}

func (s *Segmenter) shouldStartNew(speaker string, start, end time.Time) bool {
	if s.current == nil {
		return true
	}
	if speaker != s.current.Speaker {
		return true
	}
	if !s.lastActivity.IsZero() && start.Sub(s.lastActivity) >= s.config.MinPause {
		return true
	}
	// Appending this fragment would blow past the duration cap.
	if end.Sub(s.current.StartTime) > s.config.MaxUtterance {
		return true
	}
	return false
}

func (s *Segmenter) merge(text string, end time.Time, confidence float64) {
	if s.current == nil {
		return
	}
	if s.current.Text != "" && text != "" {
		s.current.Text += " " + text
	} else if text != "" {
		s.current.Text = text
	}
	s.current.EndTime = end
	// Two-point mean of old and new, not a running weighted average.
	if s.current.Confidence > 0 {
		s.current.Confidence = (s.current.Confidence + confidence) / 2
	} else {
		s.current.Confidence = confidence
	}
}

// finalize validates the open utterance, returning it cleaned or nil
// when it is discarded. The state machine returns to idle either way.
func (s *Segmenter) finalize() *Utterance {
	if s.current == nil {
		return nil
	}
	utterance := s.current
	s.current = nil

	if !s.lastActivity.IsZero() {
		utterance.PauseBeforeNext = s.now().Sub(s.lastActivity)
	}

	if utterance.Duration() < s.config.MinUtterance {
		s.discardedCount++
		metrics.UtterancesDiscarded.Inc()
		s.logger.WithField("duration", utterance.Duration()).Debug("Skipping short utterance")
		return nil
	}

	cleaned := CleanText(utterance.Text)
	if len(strings.ReplaceAll(cleaned, " ", "")) < 2 {
		s.discardedCount++
		metrics.UtterancesDiscarded.Inc()
		s.logger.Debug("Skipping empty utterance")
		return nil
	}
	utterance.Text = cleaned

	s.finalizedCount++
	s.logger.WithFields(logrus.Fields{
		"speaker":  utterance.Speaker,
		"text":     utterance.Text,
		"duration": utterance.Duration(),
	}).Info("Finalized utterance")
	return utterance
}

// Reset discards any open utterance and returns to idle.
func (s *Segmenter) Reset() {
	if s.current != nil {
		s.logger.Warn("Resetting with active utterance, discarding it")
	}
	s.current = nil
	s.lastActivity = time.Time{}
}

// Stats describes the segmenter's current state and counters.
type Stats struct {
	ActiveUtterance bool      `json:"active_utterance"`
	Finalized       int64     `json:"finalized"`
	Discarded       int64     `json:"discarded"`
	LastActivity    time.Time `json:"last_activity"`
}

// Stats returns a snapshot of segmenter state.
func (s *Segmenter) Stats() Stats {
	return Stats{
		ActiveUtterance: s.current != nil,
		Finalized:       s.finalizedCount,
		Discarded:       s.discardedCount,
		LastActivity:    s.lastActivity,
	}
}

// CleanText collapses whitespace and strips filler words, including
// the two-word filler "you know", case-insensitively.
func CleanText(text string) string {
	words := strings.Fields(text)
	cleaned := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		lower := strings.ToLower(words[i])
		if lower == "you" && i+1 < len(words) && strings.ToLower(words[i+1]) == "know" {
			i++
			continue
		}
		if fillerWords[lower] {
			continue
		}
		cleaned = append(cleaned, words[i])
	}
	return strings.Join(cleaned, " ")
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
