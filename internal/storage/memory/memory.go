package memory

import (
	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/id/uuid"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// Option customizes the stores in this package.
type Option func(*options)

type options struct {
	ids   store.IDGenerator
	clock crawler.Clock
}

// WithIDGenerator overrides the UUID v7 generator.
func WithIDGenerator(ids store.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithClock overrides the wall clock.
func WithClock(clock crawler.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	o := options{ids: uuid.New(), clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
