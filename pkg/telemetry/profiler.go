// Package telemetry records operation timings per component and
// aggregates them into per-component and dashboard-grouped statistics.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Sample is one completed timed operation.
type Sample struct {
	Component  string                 `json:"component_name"`
	Operation  string                 `json:"operation_name"`
	DurationMs float64                `json:"duration_ms"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ComponentStats aggregates all samples of one raw component.
type ComponentStats struct {
	Component       string    `json:"component"`
	TotalOperations int       `json:"total_operations"`
	AvgDurationMs   float64   `json:"avg_duration_ms"`
	MinDurationMs   float64   `json:"min_duration_ms"`
	MaxDurationMs   float64   `json:"max_duration_ms"`
	TotalDurationMs float64   `json:"total_duration_ms"`
	OpsPerSecond    float64   `json:"operations_per_second"`
	LastOperation   time.Time `json:"last_operation_time"`
}

// GroupStats aggregates one dashboard category.
type GroupStats struct {
	TotalOperations int     `json:"total_operations"`
	TotalDurationMs float64 `json:"total_duration_ms"`
	AverageTimeMs   float64 `json:"average_time"`
	MinDurationMs   float64 `json:"min_duration_ms"`
	MaxDurationMs   float64 `json:"max_duration_ms"`
}

// Snapshot is the dashboard view broadcast at a fixed interval.
type Snapshot struct {
	TotalEvents    int                   `json:"total_events"`
	AverageLatency float64               `json:"average_latency"`
	Components     map[string]GroupStats `json:"components"`
	Timestamp      time.Time             `json:"timestamp"`
}

// componentGroups maps raw component names onto dashboard categories.
// Unlisted components pass through under their own name. Bump the
// version when a mapping changes so dashboards can detect drift.
const GroupMappingVersion = 1

var componentGroups = map[string]string{
	"audio_capture":          "audio",
	"transcription":          "transcription",
	"sentiment":              "sentiment",
	"sentiment_analysis":     "sentiment",
	"events":                 "events",
	"event_emission":         "events",
	"utterance_segmentation": "transcription",
}

// Profiler collects timing samples. Tokens returned by Begin carry the
// component, operation and a per-profiler sequence number, so
// overlapping calls on the same operation stay distinct. Safe for
// concurrent use.
type Profiler struct {
	mu      sync.Mutex
	now     func() time.Time
	seq     uint64
	pending map[string]time.Time
	samples []Sample
}

// NewProfiler creates an empty profiler.
func NewProfiler() *Profiler {
	return &Profiler{
		now:     time.Now,
		pending: make(map[string]time.Time),
	}
}

// Begin starts timing an operation and returns its token.
func (p *Profiler) Begin(component, operation string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	token := fmt.Sprintf("%s:%s:%d:%d", component, operation, p.now().UnixNano(), p.seq)
	p.pending[token] = p.now()
	return token
}

// End finishes a timed operation and records the sample. Metadata may
// be nil; errors during the operation should be recorded there.
func (p *Profiler) End(token string, metadata map[string]interface{}) (Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.pending[token]
	if !ok {
		return Sample{}, fmt.Errorf("unknown timing token %q", token)
	}
	delete(p.pending, token)

	end := p.now()
	parts := strings.SplitN(token, ":", 3)
	sample := Sample{
		Component:  parts[0],
		Operation:  parts[1],
		DurationMs: float64(end.Sub(start)) / float64(time.Millisecond),
		Timestamp:  end,
		Metadata:   metadata,
	}
	p.samples = append(p.samples, sample)
	return sample, nil
}

// Track times fn and records the sample, attaching any error from fn
// as metadata. The error is returned unchanged.
func (p *Profiler) Track(component, operation string, fn func() error) error {
	token := p.Begin(component, operation)
	err := fn()
	var metadata map[string]interface{}
	if err != nil {
		metadata = map[string]interface{}{"error": err.Error()}
	}
	p.End(token, metadata)
	return err
}

// ComponentStats aggregates the samples recorded for one component.
func (p *Profiler) ComponentStats(component string) ComponentStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.componentStatsLocked(component)
}

func (p *Profiler) componentStatsLocked(component string) ComponentStats {
	stats := ComponentStats{Component: component}
	for _, sample := range p.samples {
		if sample.Component != component {
			continue
		}
		if stats.TotalOperations == 0 || sample.DurationMs < stats.MinDurationMs {
			stats.MinDurationMs = sample.DurationMs
		}
		if sample.DurationMs > stats.MaxDurationMs {
			stats.MaxDurationMs = sample.DurationMs
		}
		if sample.Timestamp.After(stats.LastOperation) {
			stats.LastOperation = sample.Timestamp
		}
		stats.TotalOperations++
		stats.TotalDurationMs += sample.DurationMs
	}
	if stats.TotalOperations > 0 {
		stats.AvgDurationMs = stats.TotalDurationMs / float64(stats.TotalOperations)
		if stats.AvgDurationMs > 0 {
			stats.OpsPerSecond = 1000 / stats.AvgDurationMs
		}
	}
	return stats
}

// AllStats returns per-component aggregates for every component seen.
func (p *Profiler) AllStats() map[string]ComponentStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	for _, sample := range p.samples {
		seen[sample.Component] = true
	}
	all := make(map[string]ComponentStats, len(seen))
	for component := range seen {
		all[component] = p.componentStatsLocked(component)
	}
	return all
}

// GroupedSnapshot folds per-component stats into dashboard categories.
func (p *Profiler) GroupedSnapshot() Snapshot {
	all := p.AllStats()

	snapshot := Snapshot{
		Components: make(map[string]GroupStats),
		Timestamp:  time.Now(),
	}
	for component, stats := range all {
		snapshot.TotalEvents += stats.TotalOperations
		snapshot.AverageLatency += stats.AvgDurationMs

		category, ok := componentGroups[component]
		if !ok {
			category = component
		}
		group, exists := snapshot.Components[category]
		if !exists || stats.MinDurationMs < group.MinDurationMs {
			group.MinDurationMs = stats.MinDurationMs
		}
		if stats.MaxDurationMs > group.MaxDurationMs {
			group.MaxDurationMs = stats.MaxDurationMs
		}
		group.TotalOperations += stats.TotalOperations
		group.TotalDurationMs += stats.TotalDurationMs
		snapshot.Components[category] = group
	}
	if len(all) > 0 {
		snapshot.AverageLatency /= float64(len(all))
	}
	for category, group := range snapshot.Components {
		if group.TotalOperations > 0 {
			group.AverageTimeMs = group.TotalDurationMs / float64(group.TotalOperations)
		}
		snapshot.Components[category] = group
	}
	return snapshot
}

// Export writes every recorded sample to a JSON file.
func (p *Profiler) Export(path string) error {
	p.mu.Lock()
	samples := make([]Sample, len(p.samples))
	copy(samples, p.samples)
	p.mu.Unlock()

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding telemetry samples: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing telemetry export: %w", err)
	}
	return nil
}

// Reset discards all recorded samples and pending timings.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = nil
	p.pending = make(map[string]time.Time)
}
