package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// markupSelector lists the rich-text elements the consultation editor emits.
	markupSelector = "p, br, div, span, li, ul, ol, b, i, u, em, strong, a, blockquote, h1, h2, h3, h4, h5, h6, table, tr, td, th"
	// blockSelector lists elements whose boundaries separate words in the rendered text.
	blockSelector = "p, div, li, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote"
)

// PlainText renders a rich-text comment as plain text with collapsed
// whitespace. Anything that is not recognisable markup is returned unchanged,
// so a stray "<" or an entity in ordinary text survives as typed.
func PlainText(raw string) string {
	doc, ok := parseMarkup(raw)
	if !ok {
		return raw
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// HasMarkup reports whether raw contains rich-text elements PlainText would strip.
func HasMarkup(raw string) bool {
	_, ok := parseMarkup(raw)
	return ok
}

// parseMarkup only accepts input with a closing tag or a line break and at
// least one known element; "turnover<crore" parses as an unknown element and
// is rejected.
func parseMarkup(raw string) (*goquery.Document, bool) {
	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "</") && !strings.Contains(lower, "<br") {
		return nil, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, false
	}
	if doc.Find(markupSelector).Length() == 0 {
		return nil, false
	}
	return doc, true
}
