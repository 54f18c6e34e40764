// Package events builds finalized analysis events and fans them out to
// live websocket subscribers, a durable file sink and local callbacks.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/webfish0/happyChatty/pkg/segmenter"
	"github.com/webfish0/happyChatty/pkg/sentiment"
	"github.com/webfish0/happyChatty/pkg/telemetry"
)

// AnalysisEvent is the immutable unit delivered to every sink: one
// finalized utterance with its sentiment vector.
type AnalysisEvent struct {
	ID          string              `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	Speaker     string              `json:"speaker"`
	Text        string              `json:"text"`
	Sentiment   sentiment.Scores    `json:"sentiment"`
	Duration    float64             `json:"duration"`
	Confidence  float64             `json:"confidence"`
	Performance *telemetry.Snapshot `json:"performance,omitempty"`
}

// NewAnalysisEvent builds an event from a finalized utterance and its
// scores. The telemetry snapshot is optional.
func NewAnalysisEvent(u segmenter.Utterance, scores sentiment.Scores, performance *telemetry.Snapshot) AnalysisEvent {
	return AnalysisEvent{
		ID:          uuid.New().String(),
		Timestamp:   u.EndTime,
		Speaker:     u.Speaker,
		Text:        u.Text,
		Sentiment:   scores,
		Duration:    u.Duration().Seconds(),
		Confidence:  u.Confidence,
		Performance: performance,
	}
}

// Summary renders a one-line console view with the top three emotions.
func (e *AnalysisEvent) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (%.1fs, conf %.2f): %q",
		e.Timestamp.Format("15:04:05"), e.Speaker, e.Duration, e.Confidence, e.Text)

	var shown int
	for _, emotion := range e.Sentiment.TopEmotions(3) {
		if emotion.Score <= 0 {
			continue
		}
		if shown == 0 {
			sb.WriteString(" |")
		}
		fmt.Fprintf(&sb, " %s %.2f", emotion.Label, emotion.Score)
		shown++
	}
	return sb.String()
}

// Envelope wraps payloads pushed to websocket subscribers so clients
// can tell analysis events from telemetry frames.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Envelope message types.
const (
	TypeAnalysisEvent = "analysis_event"
	TypeTelemetry     = "telemetry"
)
