// Package segmenter groups ordered transcript fragments into finalized
// speaker utterances using pause, speaker-change and duration rules.
package segmenter

import (
	"strings"
	"time"
)

// Utterance is a finalized, validated run of one speaker's speech.
type Utterance struct {
	Speaker    string
	Text       string
	StartTime  time.Time
	EndTime    time.Time
	Confidence float64

	// PauseBeforeNext is the silent gap observed after the utterance,
	// measured at finalization time.
	PauseBeforeNext time.Duration
}

// Duration returns the utterance length.
func (u *Utterance) Duration() time.Duration {
	return u.EndTime.Sub(u.StartTime)
}

// WordsPerMinute returns the speaking rate, or 0 for zero-length utterances.
func (u *Utterance) WordsPerMinute() float64 {
	seconds := u.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(len(strings.Fields(u.Text))) / seconds * 60
}
