// Package brain talks to language-model completion endpoints.
//
// Providers are single-shot: one request, one bounded timeout, no retries.
// Failures come back as plain errors, with HTTPError for non-200 replies so
// callers can tell an auth or quota problem from a network one.
package brain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a provider has no credential.
var ErrNotConfigured = errors.New("provider not configured")

// ErrMalformedResponse wraps failures to decode a provider reply.
var ErrMalformedResponse = errors.New("malformed provider response")

// Provider is the interface for completion backends.
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider has a credential
	Available() bool

	// Generate sends a prompt and returns the reply text
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	Model        string // overrides the provider default when set
}

// Response is the provider's reply.
type Response struct {
	Content string
	Model   string
}

// HTTPError is a non-200 reply from a provider endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// Unavailable is a Provider with no credential. Every call fails with
// ErrNotConfigured.
type Unavailable struct{}

func (Unavailable) Name() string    { return "none" }
func (Unavailable) Available() bool { return false }
func (Unavailable) Generate(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

// Select returns the first available provider, or Unavailable.
func Select(providers ...Provider) Provider {
	for _, p := range providers {
		if p != nil && p.Available() {
			return p
		}
	}
	return Unavailable{}
}
