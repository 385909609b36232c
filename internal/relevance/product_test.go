package relevance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectProductBlueWidget(t *testing.T) {
	t.Parallel()

	items := []ContextItem{
		{Title: "Blue Widget", Content: "Price: $19.99. Category: Toys", Category: "product"},
		{Title: "About Us", Content: "We are a company founded in 2010."},
	}
	query := "What is the price of the blue widget?"
	require.True(t, IsProductQuery(query))

	got := SelectProduct(query, items)
	require.Len(t, got, 1)
	require.Equal(t, "Blue Widget", got[0].Title)
	// 10 for the price marker, 2 each for "blue" and "widget".
	require.Equal(t, 14, got[0].Score)

	selected, mode := Select(query, items)
	require.Equal(t, ModeProduct, mode)
	require.Equal(t, []string{"Blue Widget"}, titles(selected))
}

func TestSelectProductKeepsQualifiedZeroScores(t *testing.T) {
	t.Parallel()

	items := []ContextItem{
		{Title: "Lamp", Content: "A tall reading lamp.", Category: "Catalog"},
		{Title: "Team", Content: "Meet the team."},
	}
	got := SelectProduct("do you sell chairs", items)
	require.Len(t, got, 1)
	require.Equal(t, "Lamp", got[0].Title)
	require.Zero(t, got[0].Score)
}

func TestSelectProductNoPriceBonusWithoutPriceQuestion(t *testing.T) {
	t.Parallel()

	items := []ContextItem{{Title: "Kettle", Content: "Price: $30. Steel kettle."}}
	got := SelectProduct("is the kettle available", items)
	require.Len(t, got, 1)
	require.Equal(t, 4, got[0].Score)
}

func TestSelectProductCapsAtThree(t *testing.T) {
	t.Parallel()

	items := []ContextItem{
		{Title: "A", Content: "cost: 1"},
		{Title: "B", Content: "cost: 2 gadget"},
		{Title: "C", Content: "cost: 3"},
		{Title: "D", Content: "cost: 4 gadget gadget"},
	}
	got := SelectProduct("how much does the gadget cost", items)
	require.Equal(t, []string{"D", "B", "A"}, titles(got))
	require.Equal(t, []int{14, 12, 10}, []int{got[0].Score, got[1].Score, got[2].Score})
}

func TestIsProductQuery(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"How much is shipping to Canada?": true,
		"Is the XL model in stock":        true,
		"Which BRAND do you carry":        true,
		"What are your opening hours?":    false,
		"refund policy":                   false,
		"":                                false,
	}
	for query, want := range tests {
		require.Equal(t, want, IsProductQuery(query), query)
	}
}
