// Package auto combines a static fetcher with a headless one, rendering in
// the browser only when the static response looks like an empty shell.
package auto

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
)

// Detector decides whether a static response needs rendering.
type Detector interface {
	ShouldPromote(resp crawler.FetchResponse) bool
}

// Fetcher probes with a static fetcher and promotes to a browser fetch when
// the detector asks for it.
type Fetcher struct {
	probe    crawler.Fetcher
	browser  crawler.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New wires the probe, browser and detector. All three are required.
func New(probe, browser crawler.Fetcher, detector Detector, logger *zap.Logger) (*Fetcher, error) {
	if probe == nil || browser == nil || detector == nil {
		return nil, errors.New("auto fetcher: probe, browser and detector are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{probe: probe, browser: browser, detector: detector, logger: logger.Named("auto_fetcher")}, nil
}

// Fetch returns the probe response unless it is promoted. A failed browser
// fetch falls back to the probe response.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.probe.Fetch(ctx, request)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	if !f.detector.ShouldPromote(resp) {
		return resp, nil
	}

	rendered, err := f.browser.Fetch(ctx, request)
	if err != nil {
		metrics.ObservePromotion("fallback")
		f.logger.Warn("headless fetch failed, keeping static response",
			zap.String("url", request.URL),
			zap.Error(err),
		)
		return resp, nil
	}
	metrics.ObservePromotion("rendered")
	f.logger.Debug("page rendered headless", zap.String("url", request.URL))
	return rendered, nil
}
