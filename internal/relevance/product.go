package relevance

import "strings"

const priceBonus = 10

var (
	productStopWords = setOf(
		"what", "which", "where", "when", "does", "have", "with", "this",
		"that", "there", "from", "your", "about", "price", "cost",
	)
	productCategories = setOf("product", "products", "catalog", "inventory", "shop", "store")
	priceMarkers      = []string{"price:", "$", "cost:", "category:"}

	productIndicators = []string{
		"product", "buy", "purchase", "order", "item", "how much", "price",
		"cost", "available", "in stock", "shipping", "delivery", "model",
		"brand", "version",
	}
)

// IsProductQuery reports whether query reads like a shopping or catalog
// question.
func IsProductQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, indicator := range productIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// SelectProduct ranks catalog-like items. An item is a candidate when its
// category is a product category, its text carries a price marker, or it
// mentions a query term. Candidates earn priceBonus when the query asks about
// price or cost and the item has a price marker, plus two points per term
// occurrence. At most ProductLimit items are returned.
func SelectProduct(query string, items []ContextItem) []ScoredContextItem {
	lowerQuery := strings.ToLower(query)
	terms := tokenize(query, productStopWords)
	asksPrice := strings.Contains(lowerQuery, "price") || strings.Contains(lowerQuery, "cost")

	scored := make([]ScoredContextItem, 0, len(items))
	for _, item := range items {
		text := searchText(item)
		_, productCategory := productCategories[strings.ToLower(strings.TrimSpace(item.Category))]
		hasMarker := containsAny(text, priceMarkers)

		score, matched := 0, false
		for _, term := range terms {
			if n := strings.Count(text, term); n > 0 {
				matched = true
				score += 2 * n
			}
		}
		if !productCategory && !hasMarker && !matched {
			continue
		}
		if asksPrice && hasMarker {
			score += priceBonus
		}
		scored = append(scored, ScoredContextItem{ContextItem: item, Score: score})
	}
	return rank(scored, ProductLimit)
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func setOf(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
