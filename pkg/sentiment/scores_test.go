package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScoresCoversAllLabels(t *testing.T) {
	scores := NewScores()
	assert.Len(t, scores, len(Labels))
	for _, label := range Labels {
		assert.Contains(t, scores, label)
		assert.Equal(t, 0.0, scores[label])
	}
}

func TestParseScoresCaseInsensitive(t *testing.T) {
	scores := ParseScores(map[string]float64{
		"happy":   0.7,
		"SAD":     0.3,
		"Curious": 0.5,
	})

	assert.Equal(t, 0.7, scores["Happy"])
	assert.Equal(t, 0.3, scores["Sad"])
	assert.Equal(t, 0.5, scores["Curious"])
}

func TestParseScoresClampsAndDropsUnknown(t *testing.T) {
	scores := ParseScores(map[string]float64{
		"Happy":    1.8,
		"Sad":      -0.4,
		"Sarcasm":  0.9,
		"Confused": 0.2,
	})

	assert.Equal(t, 1.0, scores["Happy"])
	assert.Equal(t, 0.0, scores["Sad"])
	assert.Equal(t, 0.2, scores["Confused"])
	assert.NotContains(t, scores, "Sarcasm")
	assert.Len(t, scores, len(Labels))
}

func TestTopEmotionsOrdering(t *testing.T) {
	scores := NewScores()
	scores["Happy"] = 0.9
	scores["Excited"] = 0.6
	scores["Content"] = 0.6

	top := scores.TopEmotions(3)

	assert.Len(t, top, 3)
	assert.Equal(t, "Happy", top[0].Label)
	// Ties are ordered alphabetically.
	assert.Equal(t, "Content", top[1].Label)
	assert.Equal(t, "Excited", top[2].Label)
}

func TestDominant(t *testing.T) {
	scores := NewScores()
	scores["Frustrated"] = 0.8
	scores["Angry"] = 0.4

	dominant := scores.Dominant()
	assert.Equal(t, "Frustrated", dominant.Label)
	assert.Equal(t, 0.8, dominant.Score)
}
