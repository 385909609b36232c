// Package generation turns a selected context and a chat query into a reply
// from a hosted language model, with an ordered list of fallback providers.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JakeFAU/sitechat-crawler/internal/policy/ratelimit"
)

var (
	// ErrGenerationFailed is returned when every provider in a chain failed.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrMissingAPIKey is returned before any network call when a provider
	// has no credentials.
	ErrMissingAPIKey = errors.New("api key not configured")
	// ErrEmptyResponse marks a successful call that carried no text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// ApologyMessage is shown to end users when no provider could answer.
const ApologyMessage = "I apologize, but I encountered an issue while processing your request. Please try again in a moment."

// Provider generates text for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatusError reports a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// maxErrorBody bounds how much of an error payload ends up in logs.
const maxErrorBody = 512

// postJSON sends payload to endpoint and decodes a 2xx answer into out.
func postJSON(
	ctx context.Context,
	client *http.Client,
	limiter *ratelimit.Limiter,
	provider, endpoint string,
	headers http.Header,
	payload, out any,
) error {
	if err := limiter.Wait(ctx, endpoint); err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request: %w", provider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func httpClientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}
