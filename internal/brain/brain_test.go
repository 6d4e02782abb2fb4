package brain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func TestClaudeProvider_Generate(t *testing.T) {
	var got claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != claudeVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","stop_reason":"end_turn","content":[{"type":"text","text":"3, 1"},{"type":"tool_use"},{"type":"text","text":"2"}]}`))
	}))
	defer server.Close()

	p := NewClaudeProvider("k", "", time.Second).WithEndpoint(server.URL)
	resp, err := p.Generate(context.Background(), Request{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		MaxTokens:    80,
		Model:        "claude-sonnet-4-6",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "3, 1 2" {
		t.Errorf("Content = %q, want %q", resp.Content, "3, 1 2")
	}
	if got.Model != "claude-sonnet-4-6" || got.MaxTokens != 80 || got.System != "sys" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestClaudeProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewClaudeProvider("k", "", time.Second).WithEndpoint(server.URL)
	_, err := p.Generate(context.Background(), Request{UserPrompt: "x"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", httpErr.Status)
	}
}

func TestClaudeProvider_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	p := NewClaudeProvider("k", "", time.Second).WithEndpoint(server.URL)
	_, err := p.Generate(context.Background(), Request{UserPrompt: "x"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClaudeProvider_NoKey(t *testing.T) {
	p := NewClaudeProvider("  ", "", time.Second)
	if p.Available() {
		t.Error("blank key should not be available")
	}
	if _, err := p.Generate(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %s", r.Header.Get("Authorization"))
		}
		resp := openai.ChatCompletionResponse{
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: " NONE \n"},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", "", server.URL, time.Second)
	resp, err := p.Generate(context.Background(), Request{UserPrompt: "x", Model: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "NONE" {
		t.Errorf("Content = %q, want NONE", resp.Content)
	}
}

func TestOpenAIProvider_ZeroTemperatureSent(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: "1"},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	tests := []struct {
		name string
		temp float64
		max  float64
	}{
		{"zero", 0, 1e-6},
		{"explicit", 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body = nil
			p := NewOpenAIProvider("test-key", "", server.URL, time.Second)
			if _, err := p.Generate(context.Background(), Request{UserPrompt: "x", Temperature: tt.temp}); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			v, ok := body["temperature"]
			if !ok {
				t.Fatalf("request body has no temperature: %v", body)
			}
			f, _ := v.(float64)
			if f > tt.max {
				t.Errorf("temperature = %v, want <= %v", f, tt.max)
			}
		})
	}
}

func TestOpenAIProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", "", server.URL, time.Second)
	_, err := p.Generate(context.Background(), Request{UserPrompt: "x"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", httpErr.Status)
	}
}

func TestSelect(t *testing.T) {
	none := NewClaudeProvider("", "", 0)
	oa := NewOpenAIProvider("k", "", "", 0)
	if got := Select(none, oa).Name(); got != "openai" {
		t.Errorf("Select = %s, want openai", got)
	}
	if got := Select(none, nil).Name(); got != "none" {
		t.Errorf("Select = %s, want none", got)
	}
}
