package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Analyzer scores an utterance's text across the closed emotion label set.
type Analyzer interface {
	Analyze(ctx context.Context, text, speaker string) (Scores, error)
}

// OpenRouterConfig configures the remote chat-completions scorer.
type OpenRouterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetry    time.Duration
}

// DefaultOpenRouterConfig returns the default remote scorer settings.
func DefaultOpenRouterConfig() OpenRouterConfig {
	return OpenRouterConfig{
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "google/gemma-2-9b-it:free",
		MaxTokens:   500,
		Temperature: 0.1,
		Timeout:     30 * time.Second,
		MaxRetry:    20 * time.Second,
	}
}

// OpenRouterAnalyzer scores utterances with a chat-completions model. A
// malformed model response degrades to a best-effort JSON extraction and
// finally to the deterministic lexicon scorer; only transport-level
// failures surface as errors.
type OpenRouterAnalyzer struct {
	logger   *logrus.Entry
	config   OpenRouterConfig
	client   *http.Client
	fallback *LexiconAnalyzer
}

// jsonObjectPattern finds the outermost JSON object inside model chatter.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// NewOpenRouterAnalyzer creates the remote scorer.
func NewOpenRouterAnalyzer(logger *logrus.Logger, config OpenRouterConfig) *OpenRouterAnalyzer {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenRouterConfig().BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOpenRouterConfig().Timeout
	}
	return &OpenRouterAnalyzer{
		logger:   logger.WithField("component", "sentiment_analyzer"),
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		fallback: NewLexiconAnalyzer(),
	}
}

// Analyze implements Analyzer.
func (a *OpenRouterAnalyzer) Analyze(ctx context.Context, text, speaker string) (Scores, error) {
	if strings.TrimSpace(text) == "" {
		return NewScores(), nil
	}

	content, err := a.complete(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("sentiment request failed: %w", err)
	}

	scores, ok := a.parseContent(content)
	if !ok {
		a.logger.WithField("speaker", speaker).Warn("Could not parse scorer response, using lexicon fallback")
		return a.fallback.Score(text), nil
	}
	return scores, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete performs the chat-completions call with exponential backoff on
// transport and server-side errors.
func (a *OpenRouterAnalyzer) complete(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: a.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(text)},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("scorer API status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("scorer API status %d", resp.StatusCode))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding scorer response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("scorer response had no choices"))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = a.config.MaxRetry
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

// parseContent extracts a label→score object from model output. Markdown
// code fences are stripped first; if the remainder is not itself valid
// JSON, the outermost brace-delimited object is tried.
func (a *OpenRouterAnalyzer) parseContent(content string) (Scores, bool) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	candidate := content
	if match := jsonObjectPattern.FindString(content); match != "" {
		candidate = match
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, false
	}
	return ParseScores(raw), true
}

func buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("You are a sentiment analysis assistant. Analyze the emotional tone of this text and provide numerical scores for each emotion.\n\n")
	fmt.Fprintf(&sb, "Text: %q\n\n", text)
	sb.WriteString("For each emotion below, provide a score from 0.0 (not present) to 1.0 (strongly present):\n\n")
	for _, label := range Labels {
		fmt.Fprintf(&sb, "%s: %s\n", label, LabelDescriptions[label])
	}
	sb.WriteString("\nReturn a JSON object with exact emotion names as keys and float values between 0.0 and 1.0. No explanations, just the JSON.\n\n")
	sb.WriteString("Example format:\n{\"Happy\": 0.2, \"Sad\": 0.8, \"Angry\": 0.1, \"Content\": 0.3, \"Curious\": 0.0}\n\nJSON response:")
	return sb.String()
}
