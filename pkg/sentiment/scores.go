package sentiment

import (
	"sort"
	"strings"
)

// Labels is the closed set of emotion labels scored for every utterance.
// Scores for labels outside this set are discarded; labels that a scorer
// does not mention stay at 0.0.
var Labels = []string{
	"Happy", "Joyful", "Content", "Enthusiastic", "Helpful",
	"Kind", "Compassionate", "Polite", "Grateful", "Sweet", "Wholesome",
	"Mischievous", "Curious", "Confused", "Surprised",
	"Sarcastic", "Ironic", "Teasing",
	"Sad", "Angry", "Frustrated", "Disappointed", "Anxious",
	"Rude", "Ungrateful", "Cruel", "Hostile", "Sleazy", "Insulting", "Threatening",
}

// LabelDescriptions maps each label to the description handed to the
// scoring model in the classification prompt.
var LabelDescriptions = map[string]string{
	"Happy":         "Feeling or showing pleasure or contentment",
	"Joyful":        "Feeling, expressing, or causing great pleasure and happiness",
	"Content":       "In a state of peaceful happiness",
	"Enthusiastic":  "Having or showing intense and eager enjoyment",
	"Helpful":       "Giving or ready to give help",
	"Kind":          "Having or showing a friendly, generous, and considerate nature",
	"Compassionate": "Feeling or showing sympathy and concern for others",
	"Polite":        "Having or showing behavior that is respectful and considerate",
	"Grateful":      "Feeling or showing an appreciation for something done or received",
	"Sweet":         "Pleasant, kind, and gentle toward other people",
	"Wholesome":     "Conducive to or suggestive of good health and physical well-being",
	"Mischievous":   "Causing or showing a fondness for causing trouble in a playful way",
	"Curious":       "Eager to know or learn something",
	"Confused":      "Unable to think clearly; bewildered",
	"Surprised":     "Feeling or showing surprise",
	"Sarcastic":     "Marked by or given to using irony in order to mock or convey contempt",
	"Ironic":        "Happening in the opposite way to what is expected",
	"Teasing":       "Intending to provoke or make fun of someone in a playful way",
	"Sad":           "Feeling or showing sorrow; unhappy",
	"Angry":         "Having a strong feeling of or showing annoyance, displeasure, or hostility",
	"Frustrated":    "Feeling or expressing distress and annoyance resulting from an inability to change or achieve something",
	"Disappointed":  "Sad or displeased because someone or something has failed to fulfill one's hopes or expectations",
	"Anxious":       "Experiencing worry, unease, or nervousness",
	"Rude":          "Offensively impolite or ill-mannered",
	"Ungrateful":    "Not feeling or showing gratitude",
	"Cruel":         "Willfully causing pain or suffering to others",
	"Hostile":       "Unfriendly; antagonistic",
	"Sleazy":        "Dirty, sordid, or disreputable",
	"Insulting":     "Disrespectful or scornfully abusive",
	"Threatening":   "Having a hostile or deliberately frightening quality",
}

// canonicalLabels maps lower-cased label names back to their canonical
// spelling, so scorer responses are matched case-insensitively.
var canonicalLabels = func() map[string]string {
	m := make(map[string]string, len(Labels))
	for _, label := range Labels {
		m[strings.ToLower(label)] = label
	}
	return m
}()

// Scores holds per-label emotion intensities in [0, 1]. A Scores value is
// always fully populated: every label in Labels is present.
type Scores map[string]float64

// NewScores returns a zero-valued score vector covering every label.
func NewScores() Scores {
	s := make(Scores, len(Labels))
	for _, label := range Labels {
		s[label] = 0.0
	}
	return s
}

// ParseScores builds a score vector from raw scorer output. Keys are
// matched case-insensitively against the closed label set; unknown keys
// are dropped and every accepted value is clamped to [0, 1].
func ParseScores(raw map[string]float64) Scores {
	s := NewScores()
	for key, value := range raw {
		label, ok := canonicalLabels[strings.ToLower(key)]
		if !ok {
			continue
		}
		s[label] = clamp(value)
	}
	return s
}

func clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// LabelScore pairs a label with its score, used for ranked views.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// TopEmotions returns the k highest-scoring labels in descending order.
// Ties break alphabetically so the ordering is stable.
func (s Scores) TopEmotions(k int) []LabelScore {
	ranked := make([]LabelScore, 0, len(s))
	for label, score := range s {
		ranked = append(ranked, LabelScore{Label: label, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Label < ranked[j].Label
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}

// Dominant returns the single highest-scoring label.
func (s Scores) Dominant() LabelScore {
	top := s.TopEmotions(1)
	if len(top) == 0 {
		return LabelScore{}
	}
	return top[0]
}
