package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// LooksLikeHTML is a cheap check for markup in a scraped description.
func LooksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// blockTags end a line of text when flattened.
const blockTags = "p, div, li, br, h1, h2, h3, h4, h5, h6, tr"

// HTMLToText flattens an HTML fragment to text, one line per block element.
// Non-HTML input is returned trimmed.
func HTMLToText(s string) string {
	if !LooksLikeHTML(s) {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CleanText(s)
	}
	doc.Find("script, style").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

var stateCodes = map[string]string{
	"new south wales":              "NSW",
	"victoria":                     "VIC",
	"queensland":                   "QLD",
	"south australia":              "SA",
	"western australia":            "WA",
	"tasmania":                     "TAS",
	"northern territory":           "NT",
	"australian capital territory": "ACT",
}

// NormalizeState maps Australian state names to their codes and upper-cases
// anything else. "" stays "".
func NormalizeState(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	if code, ok := stateCodes[strings.ToLower(s)]; ok {
		return code
	}
	return strings.ToUpper(s)
}
