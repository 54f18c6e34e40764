package sentiment

import (
	"context"
	"strings"
)

// lexicon word lists for the offline scorer. Matching is whole-word and
// case-insensitive.
var (
	positiveLexicon = []string{
		"good", "great", "happy", "love", "wonderful", "amazing", "fantastic", "excellent",
	}
	negativeLexicon = []string{
		"bad", "terrible", "hate", "awful", "horrible", "angry", "sad", "frustrated",
	}
)

// LexiconAnalyzer scores text with a fixed keyword lexicon. It needs no
// network access and is fully deterministic, which makes it both the
// fallback scorer when the remote analyzer fails and the default when no
// API key is configured.
type LexiconAnalyzer struct{}

// NewLexiconAnalyzer creates the offline lexicon scorer.
func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{}
}

// Analyze implements Analyzer. It never fails.
func (a *LexiconAnalyzer) Analyze(_ context.Context, text, _ string) (Scores, error) {
	return a.Score(text), nil
}

// Score computes the lexicon-based vector for text.
func (a *LexiconAnalyzer) Score(text string) Scores {
	scores := NewScores()

	words := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,!?;:'\"")]++
	}

	var positive, negative int
	for _, w := range positiveLexicon {
		positive += words[w]
	}
	for _, w := range negativeLexicon {
		negative += words[w]
	}

	switch {
	case positive > negative:
		scores["Happy"] = capAt(float64(positive)*0.2, 0.8)
		scores["Content"] = capAt(float64(positive)*0.15, 0.6)
	case negative > positive:
		scores["Sad"] = capAt(float64(negative)*0.2, 0.8)
		scores["Frustrated"] = capAt(float64(negative)*0.15, 0.6)
	default:
		scores["Content"] = 0.5
	}

	return scores
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
