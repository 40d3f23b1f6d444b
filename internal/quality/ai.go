package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/memvault/memvault/pkg/types"
)

// AIConfig configures the optional AI-backed quality provider (disabled by
// default, spec §6.3 / SPEC_FULL.md §E.4: wired but opt-in, since it costs a
// network round trip per scored memory).
type AIConfig struct {
	APIKey  string
	Model   string        // default: gpt-4o-mini
	BaseURL string        // default: https://api.openai.com
	Timeout time.Duration // default: 20s
}

// AI scores a memory's quality via a chat-completion judge prompt. Grounded
// on the teacher's internal/llm/openai.go OpenAIClient (request/response
// shape, circuit breaker wrapping, Bearer auth) and circuit_breaker.go's
// gobreaker.CircuitBreaker wiring, narrowed to a single scoring call.
type AI struct {
	cfg     AIConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewAI constructs an AI provider. Callers must gate its use behind an
// explicit opt-in (e.g. MCP_QUALITY_PROVIDER=ai); Implicit remains the
// default everywhere a Provider is required.
func NewAI(cfg AIConfig) *AI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "quality-ai",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &AI{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *AI) Name() string { return "ai" }

type aiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []aiChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type aiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type aiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// aiJudgment is the strict JSON shape the judge prompt asks the model to
// return, so Score can parse it without free-form text handling.
type aiJudgment struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

const judgePromptTemplate = `Rate the long-term usefulness of the following memory on a scale from 0.0 (noise, safe to forget) to 1.0 (critical, must retain). Consider specificity, actionability, and whether it would still matter in a year. Respond with ONLY a JSON object: {"score": <0-1 float>, "confidence": <0-1 float>}.

Memory type: %s
Content:
%s`

func (p *AI) Score(ctx context.Context, mem *types.Memory, _ int) (*Result, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.score(ctx, mem)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("quality: ai provider circuit open: %w", err)
		}
		return nil, err
	}
	return result.(*Result), nil
}

func (p *AI) score(ctx context.Context, mem *types.Memory) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(judgePromptTemplate, mem.MemoryType, mem.Content)
	reqBody := aiChatRequest{
		Model:       p.cfg.Model,
		Messages:    []aiChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("quality: marshal judge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("quality: build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quality: judge request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quality: judge returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData aiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("quality: decode judge response: %w", err)
	}
	if len(respData.Choices) == 0 {
		return nil, fmt.Errorf("quality: judge returned no choices")
	}

	var judgment aiJudgment
	if err := json.Unmarshal([]byte(respData.Choices[0].Message.Content), &judgment); err != nil {
		return nil, fmt.Errorf("quality: parse judge verdict: %w", err)
	}

	return &Result{
		Score:        clamp01(judgment.Score),
		Confidence:   clamp01(judgment.Confidence),
		Provider:     p.Name(),
		CalculatedAt: time.Now().UTC(),
	}, nil
}
