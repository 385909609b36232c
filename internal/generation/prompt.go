package generation

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/sitechat-crawler/internal/relevance"
)

// HistoryWindow is how many past messages are replayed into a prompt.
const HistoryWindow = 6

// Turn is one past chat message.
type Turn struct {
	FromUser bool
	Text     string
}

// BuildPrompt composes the prompt sent to every provider: recent history,
// the selected context block and the new question.
func BuildPrompt(query string, items []relevance.ContextItem, history []Turn) string {
	var b strings.Builder

	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for i, turn := range history {
			if i > 0 {
				b.WriteString("\n")
			}
			speaker := "Assistant"
			if turn.FromUser {
				speaker = "User"
			}
			fmt.Fprintf(&b, "%s: %s", speaker, turn.Text)
		}
		b.WriteString("\n\n")
	}

	if len(items) > 0 {
		b.WriteString("Here is the relevant information:\n\n")
		for i, item := range items {
			if i > 0 {
				b.WriteString("---\n")
			}
			fmt.Fprintf(&b, "## %s%s\n%s\n\n", item.Title, sourceLabel(item), item.Content)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "User: %s\n\nAssistant: ", query)
	return b.String()
}

func sourceLabel(item relevance.ContextItem) string {
	switch item.Source {
	case relevance.SourceWebsite:
		return " (from crawled website)"
	case relevance.SourceTraining:
		category := item.Category
		if category == "" {
			category = "General"
		}
		return fmt.Sprintf(" (from %s training data)", category)
	default:
		return ""
	}
}
