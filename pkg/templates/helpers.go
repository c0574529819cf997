package templates

import (
	"strings"
	"text/template"
	"unicode"
)

// FuncMap returns the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"inc":  func(i int) int { return i + 1 },
		"join": strings.Join,
	}
}

// SanitizeText drops invalid UTF-8 and control characters other than
// newline and tab.
func SanitizeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

// quotePairs are the delimiters models tend to wrap a one-line answer in
var quotePairs = [][2]string{
	{`"`, `"`},
	{"'", "'"},
	{"`", "`"},
	{"“", "”"},
	{"‘", "’"},
}

// StripQuotes trims whitespace and removes one layer of matching quotes
// surrounding the whole text.
func StripQuotes(text string) string {
	text = strings.TrimSpace(text)
	for _, p := range quotePairs {
		if len(text) >= len(p[0])+len(p[1]) && strings.HasPrefix(text, p[0]) && strings.HasSuffix(text, p[1]) {
			return strings.TrimSpace(text[len(p[0]) : len(text)-len(p[1])])
		}
	}
	return text
}

// FirstLine returns the first non-blank line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
