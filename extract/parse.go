// Package extract turns captured page HTML into the structured views of a
// scrape result. Every extractor reads one shared, already-parsed Document
// and never mutates it, so extractors can run concurrently.
package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is one parsed page plus the URL it was loaded from.
type Document struct {
	doc     *goquery.Document
	pageURL string
	base    *url.URL // nil when pageURL is not absolute
}

// Parse builds a Document. html.Parse recovers from malformed markup, so
// the only failure is an unreadable input.
func Parse(rawHTML, pageURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	d := &Document{doc: goquery.NewDocumentFromNode(root), pageURL: pageURL}
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		d.base = u
	}
	return d, nil
}

// resolve makes href absolute against the page URL. It reports false and
// returns href unchanged when resolution is impossible.
func (d *Document) resolve(href string) (string, bool) {
	if d.base == nil {
		return href, false
	}
	u, err := d.base.Parse(href)
	if err != nil {
		return href, false
	}
	return u.String(), true
}

// isExternal compares hostnames; unresolvable links are internal.
func (d *Document) isExternal(href string) bool {
	if d.base == nil {
		return false
	}
	u, err := d.base.Parse(href)
	if err != nil {
		return false
	}
	return u.Hostname() != d.base.Hostname()
}

// trimmedText is the whitespace-trimmed text content of s.
func trimmedText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// optional maps "" to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
