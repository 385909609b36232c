package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
)

// Reply is a generated answer and the provider that produced it.
type Reply struct {
	Text     string
	Provider string
}

// Chain tries providers in order and returns the first success.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain builds a chain; the first provider is primary, the rest are
// fallbacks.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger.Named("generation")}
}

// Providers returns the provider names in call order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate asks each provider in turn. When all of them fail the returned
// error wraps ErrGenerationFailed and every provider's cause.
func (c *Chain) Generate(ctx context.Context, prompt string) (Reply, error) {
	var errs []error
	for i, provider := range c.providers {
		start := time.Now()
		text, err := provider.Generate(ctx, prompt)
		elapsed := time.Since(start)
		if err == nil {
			metrics.ObserveGeneration(provider.Name(), "ok", elapsed)
			if i > 0 {
				c.logger.Info("fallback provider answered", zap.String("provider", provider.Name()))
			}
			return Reply{Text: text, Provider: provider.Name()}, nil
		}
		metrics.ObserveGeneration(provider.Name(), "error", elapsed)
		c.logger.Warn("provider failed",
			zap.String("provider", provider.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Reply{}, fmt.Errorf("%w: no providers configured", ErrGenerationFailed)
	}
	return Reply{}, fmt.Errorf("%w: %w", ErrGenerationFailed, errors.Join(errs...))
}
