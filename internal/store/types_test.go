package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

func TestPagesFromRecords(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pages := PagesFromRecords([]crawler.PageRecord{
		{URL: "https://example.com/", Title: "Home", Content: "welcome", WordCount: 1, CrawledAt: at, Depth: 0},
	})
	require.Equal(t, []WebsitePage{
		{Path: "https://example.com/", Title: "Home", Content: "welcome", WordCount: 1, CrawledAt: at},
	}, pages)
	require.Empty(t, PagesFromRecords(nil))
}

func TestSummarizeTraining(t *testing.T) {
	t.Parallel()

	stats := SummarizeTraining([]TrainingData{
		{Category: "FAQ", Source: "User Upload", WordCount: 12},
		{Category: "Products", Source: "catalog.json", WordCount: 30},
		{Category: "FAQ", Source: "User Upload", WordCount: 8},
	})
	require.Equal(t, TrainingStats{
		TotalWordCount: 50,
		Categories:     []string{"FAQ", "Products"},
		Sources:        []string{"User Upload", "catalog.json"},
	}, stats)

	empty := SummarizeTraining(nil)
	require.NotNil(t, empty.Categories)
	require.Zero(t, empty.TotalWordCount)
}

func TestTrainingFilterEffectiveLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultLimit, TrainingFilter{}.EffectiveLimit())
	require.Equal(t, DefaultLimit, TrainingFilter{Limit: -3}.EffectiveLimit())
	require.Equal(t, 7, TrainingFilter{Limit: 7}.EffectiveLimit())
}
