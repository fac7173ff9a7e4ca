// Package scoring asks a language model how well transcript excerpts match a
// piece of thread text. Candidates are scored in batches to keep token usage
// and request counts down.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// Candidate is one transcript excerpt to score against the segment text.
// Context carries the neighboring transcript text so the model can judge
// whether the excerpt expresses the idea or merely shares vocabulary.
type Candidate struct {
	ID      string `json:"id"`
	Excerpt string `json:"excerpt"`
	Context string `json:"context,omitempty"`
}

// Request is one scoring batch for a single thread segment.
type Request struct {
	SegmentText string
	Candidates  []Candidate
}

// Score is the model's judgment for one candidate.
type Score struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Scorer judges candidate excerpts against segment text.
type Scorer interface {
	ScoreBatch(ctx context.Context, req Request) ([]Score, error)
}

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client scores candidates with a hosted chat model.
type Client struct {
	api     chatAPI
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a scoring client from service configuration.
func NewClient(cfg config.Services, logger *slog.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.ScoringModel,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logging.WithComponent(logger, "scoring"),
	}
}

// NewClientWithAPI injects the API implementation (used in tests).
func NewClientWithAPI(api chatAPI, model string, logger *slog.Logger) *Client {
	return &Client{api: api, model: model, logger: logging.WithComponent(logger, "scoring")}
}

const systemPrompt = `You judge whether a video transcript excerpt expresses the same idea as a piece of social media text.

Score each candidate excerpt from 0.0 to 1.0:
- 1.0: the excerpt states the same claim or idea as the text, even in different words
- 0.5: the excerpt is on the same topic but makes a different point
- 0.0: unrelated, or shares only keywords

Use the surrounding context to decide whether the excerpt genuinely carries the idea. Matching vocabulary alone is not a match.

Respond with JSON only: {"scores":[{"id":"...","confidence":0.0,"reason":"..."}]}. Include every candidate exactly once.`

type batchPayload struct {
	Text       string      `json:"text"`
	Candidates []Candidate `json:"candidates"`
}

type batchResponse struct {
	Scores []Score `json:"scores"`
}

// ScoreBatch scores all candidates in one model call. Every input candidate
// gets a score in the result; candidates the model omitted come back with
// confidence zero.
func (c *Client) ScoreBatch(ctx context.Context, req Request) ([]Score, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(batchPayload{Text: req.SegmentText, Candidates: req.Candidates})
	if err != nil {
		return nil, services.Wrap(services.ErrMatching, "scoring", "score-batch", "encode batch", err)
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrMatching, "scoring", "score-batch", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, services.Wrap(services.ErrMatching, "scoring", "score-batch", "empty completion", nil)
	}

	scores, err := parseScores(resp.Choices[0].Message.Content, req.Candidates)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("scored batch",
		logging.Int("candidates", len(req.Candidates)),
		logging.Duration("elapsed", time.Since(start)))
	return scores, nil
}

// parseScores decodes the model output and reconciles it against the input
// candidates: unknown IDs are dropped, missing IDs score zero, and confidence
// values are clamped to [0, 1].
func parseScores(content string, candidates []Candidate) ([]Score, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a code fence despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var decoded batchResponse
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, services.Wrap(services.ErrMatching, "scoring", "parse",
			fmt.Sprintf("malformed score response: %.120s", content), err)
	}

	byID := make(map[string]Score, len(decoded.Scores))
	for _, score := range decoded.Scores {
		score.Confidence = clamp01(score.Confidence)
		byID[score.ID] = score
	}

	result := make([]Score, 0, len(candidates))
	for _, candidate := range candidates {
		if score, ok := byID[candidate.ID]; ok {
			result = append(result, score)
			continue
		}
		result = append(result, Score{ID: candidate.ID, Confidence: 0})
	}
	return result, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
