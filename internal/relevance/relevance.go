// Package relevance ranks candidate context snippets against a chat query by
// keyword overlap. Every function here is pure and safe for concurrent use.
package relevance

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Result limits per mode.
const (
	GenericLimit = 5
	ProductLimit = 3
)

// Source tags where a context item came from.
type Source string

// Known sources.
const (
	SourceWebsite  Source = "website"
	SourceTraining Source = "training"
)

// ContextItem is a unit of retrievable text.
type ContextItem struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Source   Source `json:"source"`
	Category string `json:"category,omitempty"`
}

// ScoredContextItem pairs an item with its overlap score.
type ScoredContextItem struct {
	ContextItem
	Score int `json:"score"`
}

// Mode names the ranking variant chosen for a query.
type Mode string

// Ranking variants.
const (
	ModeGeneric Mode = "generic"
	ModeProduct Mode = "product"
)

// Select ranks items for query, choosing product mode when IsProductQuery
// flags the query. It never returns nil.
func Select(query string, items []ContextItem) ([]ContextItem, Mode) {
	if IsProductQuery(query) {
		return unwrap(SelectProduct(query, items)), ModeProduct
	}
	return unwrap(SelectGeneric(query, items)), ModeGeneric
}

// SelectGeneric scores every item by the weighted count of query terms in its
// lowercased title and content. Items without any overlap are dropped; the
// rest are returned best first, ties in input order, at most GenericLimit.
func SelectGeneric(query string, items []ContextItem) []ScoredContextItem {
	weights, order := termWeights(tokenize(query, nil))
	if len(order) == 0 {
		return []ScoredContextItem{}
	}

	scored := make([]ScoredContextItem, 0, len(items))
	for _, item := range items {
		text := searchText(item)
		score := 0
		for _, term := range order {
			score += strings.Count(text, term) * weights[term]
		}
		if score > 0 {
			scored = append(scored, ScoredContextItem{ContextItem: item, Score: score})
		}
	}
	return rank(scored, GenericLimit)
}

// tokenize lowercases query, splits it on whitespace, trims punctuation from
// each token and keeps tokens longer than three characters that are not in
// stop.
func tokenize(query string, stop map[string]struct{}) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		term := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(term) <= 3 {
			continue
		}
		if _, skip := stop[term]; skip {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// termWeights turns a token list into a multiset: repeated query terms weigh
// more. order keeps first-seen order so scoring is deterministic.
func termWeights(terms []string) (map[string]int, []string) {
	weights := make(map[string]int, len(terms))
	var order []string
	for _, term := range terms {
		if _, ok := weights[term]; !ok {
			order = append(order, term)
		}
		weights[term]++
	}
	return weights, order
}

func searchText(item ContextItem) string {
	return strings.ToLower(item.Title + " " + item.Content)
}

func rank(scored []ScoredContextItem, limit int) []ScoredContextItem {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func unwrap(scored []ScoredContextItem) []ContextItem {
	out := make([]ContextItem, len(scored))
	for i, s := range scored {
		out[i] = s.ContextItem
	}
	return out
}
