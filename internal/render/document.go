package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a snapshot of the rendered page.
type Document struct {
	URL   string
	Title string
	Lang  string
	HTML  string
}

// ParseDocument extracts page metadata from serialized HTML.
func ParseDocument(url, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	lang, _ := doc.Find("html").First().Attr("lang")
	return &Document{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("head > title").First().Text()),
		Lang:  strings.TrimSpace(lang),
		HTML:  html,
	}, nil
}
