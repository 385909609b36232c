package generation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var markdownRules = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\*{1,3}(.*?)\*{1,3}`), "$1"},
	{regexp.MustCompile(`#{1,6}\s`), ""},
	{regexp.MustCompile("`{1,3}(.*?)`{1,3}"), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`(?m)^\s*[-*+•]\s`), ""},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s`), ""},
}

// FormatChatResponse flattens model markdown into one conversational
// paragraph that starts with a capital letter and ends with punctuation.
func FormatChatResponse(text string) string {
	if text == "" {
		return ""
	}
	for _, rule := range markdownRules {
		text = rule.pattern.ReplaceAllString(text, rule.repl)
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(first)) + text[size:]
	if !strings.ContainsRune(".!?", lastRune(text)) {
		text += "."
	}
	return text
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
