package training

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// ErrNothingImported is returned when an upload had no valid item.
var ErrNothingImported = errors.New("no valid training items found in file")

// ItemError reports why one upload element was skipped.
type ItemError struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Report summarizes one import.
type Report struct {
	Added  int                  `json:"itemsAdded"`
	Total  int                  `json:"totalItems"`
	Items  []store.TrainingData `json:"-"`
	Errors []ItemError          `json:"errors,omitempty"`
}

// Importer parses uploads and saves the valid items.
type Importer struct {
	store  store.TrainingStore
	logger *zap.Logger
}

// NewImporter builds an Importer over s.
func NewImporter(s store.TrainingStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: s, logger: logger.Named("training")}
}

// Import saves every valid element of data. Invalid elements are reported,
// not fatal; ErrNothingImported is returned with the report when none was
// saved. A malformed upload fails with ErrInvalidJSON.
func (im *Importer) Import(ctx context.Context, data []byte, defaults Defaults) (Report, error) {
	records, err := ParseJSON(data)
	if err != nil {
		return Report{}, err
	}
	report := Report{Total: len(records)}
	for _, rec := range records {
		item, err := rec.Item(defaults)
		if err != nil {
			report.Errors = append(report.Errors, ItemError{Item: rec.Label(), Error: err.Error()})
			continue
		}
		saved, err := im.store.SaveTraining(ctx, item)
		if err != nil {
			im.logger.Warn("save training item failed", zap.String("item", rec.Label()), zap.Error(err))
			report.Errors = append(report.Errors, ItemError{Item: rec.Label(), Error: err.Error()})
			continue
		}
		report.Items = append(report.Items, saved)
	}
	report.Added = len(report.Items)
	im.logger.Info("training upload processed",
		zap.String("file", defaults.OriginalFileName),
		zap.Int("added", report.Added),
		zap.Int("total", report.Total),
	)
	if report.Added == 0 {
		return report, ErrNothingImported
	}
	return report, nil
}

// Summary lists items matching filter with their aggregate stats.
func (im *Importer) Summary(ctx context.Context, filter store.TrainingFilter) ([]store.TrainingData, store.TrainingStats, error) {
	items, err := im.store.ListTraining(ctx, filter)
	if err != nil {
		return nil, store.TrainingStats{}, fmt.Errorf("list training data: %w", err)
	}
	return items, store.SummarizeTraining(items), nil
}

// Delete removes one item; store.ErrNotFound passes through.
func (im *Importer) Delete(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	return im.store.DeleteTraining(ctx, parsed)
}
