package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abelbrown/crisiswatch/internal/logging"
)

const (
	claudeEndpoint = "https://api.anthropic.com/v1/messages"
	claudeVersion  = "2023-06-01"

	// DefaultClaudeModel is used when neither config nor request name one.
	DefaultClaudeModel = "claude-3-5-haiku-latest"
)

// ClaudeProvider implements Provider for the Anthropic Messages API.
type ClaudeProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClaudeProvider creates a Claude provider. timeout bounds each call.
func NewClaudeProvider(apiKey, model string, timeout time.Duration) *ClaudeProvider {
	if model == "" {
		model = DefaultClaudeModel
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &ClaudeProvider{
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		endpoint: claudeEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithEndpoint points the provider at another Messages-compatible URL.
func (c *ClaudeProvider) WithEndpoint(endpoint string) *ClaudeProvider {
	c.endpoint = endpoint
	return c
}

func (c *ClaudeProvider) Name() string {
	return "claude"
}

func (c *ClaudeProvider) Available() bool {
	return c.apiKey != ""
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

func (c *ClaudeProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !c.Available() {
		return Response{}, fmt.Errorf("claude: %w", ErrNotConfigured)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 120
	}

	body, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.SystemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: req.UserPrompt}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeVersion)

	logging.Debug("Claude API request", "model", model, "max_tokens", maxTokens)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Warn("Claude API error", "status", resp.StatusCode)
		return Response{}, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result claudeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if result.StopReason == "max_tokens" {
		logging.Warn("Claude response truncated due to max tokens", "model", result.Model, "max_tokens", maxTokens)
	}

	return Response{Content: messageText(result), Model: result.Model}, nil
}

// messageText joins the text blocks of a Messages reply with single spaces.
// Non-text blocks (tool use and the like) are skipped.
func messageText(r claudeResponse) string {
	parts := make([]string, 0, len(r.Content))
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
