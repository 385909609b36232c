package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/sitechat-crawler/internal/policy/ratelimit"
)

// Mistral defaults.
const (
	DefaultMistralEndpoint = "https://api.mistral.ai/v1/chat/completions"
	DefaultMistralModel    = "mistral-small-latest"
)

// MistralConfig configures the Mistral provider.
type MistralConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Mistral calls the chat completions API with the prompt as a single user
// message.
type Mistral struct {
	cfg     MistralConfig
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewMistral builds the provider.
func NewMistral(cfg MistralConfig, client *http.Client, limiter *ratelimit.Limiter) *Mistral {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMistralEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMistralModel
	}
	return &Mistral{cfg: cfg, client: httpClientOrDefault(client), limiter: limiter}
}

// Name implements Provider.
func (m *Mistral) Name() string { return "mistral" }

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralRequest struct {
	Model       string           `json:"model"`
	Temperature float64          `json:"temperature"`
	Messages    []mistralMessage `json:"messages"`
}

type mistralResponse struct {
	Choices []struct {
		Message mistralMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements Provider.
func (m *Mistral) Generate(ctx context.Context, prompt string) (string, error) {
	if m.cfg.APIKey == "" {
		return "", fmt.Errorf("mistral: %w", ErrMissingAPIKey)
	}
	payload := mistralRequest{
		Model:       m.cfg.Model,
		Temperature: 0.7,
		Messages:    []mistralMessage{{Role: "user", Content: prompt}},
	}
	headers := http.Header{"Authorization": {"Bearer " + m.cfg.APIKey}}

	var out mistralResponse
	if err := postJSON(ctx, m.client, m.limiter, m.Name(), m.cfg.Endpoint, headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("mistral: %w", ErrEmptyResponse)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("mistral: %w", ErrEmptyResponse)
	}
	return text, nil
}
