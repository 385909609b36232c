package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/JakeFAU/sitechat-crawler/internal/policy/ratelimit"
)

// DefaultGeminiEndpoint is the generateContent endpoint of the default model.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey   string
	Endpoint string
}

// Gemini calls Google's generateContent API.
type Gemini struct {
	cfg     GeminiConfig
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewGemini builds the provider. A nil client uses http.DefaultClient and a
// nil limiter does not throttle.
func NewGemini(cfg GeminiConfig, client *http.Client, limiter *ratelimit.Limiter) *Gemini {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGeminiEndpoint
	}
	return &Gemini{cfg: cfg, client: httpClientOrDefault(client), limiter: limiter}
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	endpoint, err := url.Parse(g.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("gemini: parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("key", g.cfg.APIKey)
	endpoint.RawQuery = query.Encode()

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
	}
	var out geminiResponse
	if err := postJSON(ctx, g.client, g.limiter, g.Name(), endpoint.String(), nil, payload, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
