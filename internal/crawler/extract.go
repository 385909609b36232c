package crawler

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Content extraction bounds, measured in runes.
const (
	containerMinChars = 100
	MinContentChars   = 50
	MaxContentChars   = 8000
)

var (
	contentSelectors = []string{"main", "article", ".content", "#content", "body"}
	noiseSelector    = "script, style, nav, header, footer, aside"
)

// extraction is the text pulled from one HTML document.
type extraction struct {
	Title     string
	Content   string
	WordCount int
}

// extractContent returns the page title and cleaned main text. ok is false
// when the cleaned text is too short to keep. The document is mutated.
func extractContent(doc *goquery.Document) (extraction, bool) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "No Title"
	}

	var raw string
	for _, selector := range contentSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		container.Find(noiseSelector).Remove()
		raw = container.Text()
		if utf8.RuneCountInString(strings.TrimSpace(raw)) > containerMinChars {
			break
		}
	}

	clean := collapseWhitespace(raw)
	if utf8.RuneCountInString(clean) <= MinContentChars {
		return extraction{Title: title}, false
	}
	return extraction{
		Title:     title,
		Content:   truncateRunes(clean, MaxContentChars),
		WordCount: len(strings.Fields(clean)),
	}, true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
