package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pagesift/models"
)

const defaultFavicon = "/favicon.ico"

// Metadata collects head-level information. headers are the final document
// response headers and are passed through as-is.
func Metadata(d *Document, headers map[string]string) models.Metadata {
	doc := d.doc

	canonical := attrOf(doc.Find(`link[rel="canonical"]`), "href")
	if canonical == "" {
		canonical = d.pageURL
	}

	favicon := attrOf(doc.Find(`link[rel="icon"]`), "href")
	if favicon == "" {
		favicon = attrOf(doc.Find(`link[rel="shortcut icon"]`), "href")
	}
	if favicon == "" {
		favicon = defaultFavicon
	}

	if headers == nil {
		headers = map[string]string{}
	}

	m := models.Metadata{
		CanonicalURL: canonical,
		Title:        optional(trimmedText(doc.Find("title").First())),
		Description:  optional(attrOf(doc.Find(`meta[name="description"]`), "content")),
		Author:       optional(attrOf(doc.Find(`meta[name="author"]`), "content")),
		Keywords:     optional(attrOf(doc.Find(`meta[name="keywords"]`), "content")),
		LanguageCode: optional(attrOf(doc.Find("html"), "lang")),
		Robots:       optional(attrOf(doc.Find(`meta[name="robots"]`), "content")),
		Favicon:      favicon,
		JSONLD:       jsonLD(doc),
		AllMeta:      allMeta(doc),
		Headers:      headers,
	}

	if og := prefixedMeta(doc, `meta[property^="og:"]`, "property", "og:"); len(og) > 0 {
		m.OpenGraph = og
	}
	if tw := prefixedMeta(doc, `meta[name^="twitter:"]`, "name", "twitter:"); len(tw) > 0 {
		m.Twitter = tw
	}
	if md := microdata(doc); len(md) > 0 {
		m.Microdata = md
	}
	return m
}

// attrOf returns attr of the first element in s, or "".
func attrOf(s *goquery.Selection, attr string) string {
	v, _ := s.First().Attr(attr)
	return v
}

func prefixedMeta(doc *goquery.Document, selector, attr, prefix string) map[string]string {
	out := map[string]string{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr(attr)
		content, _ := s.Attr("content")
		out[strings.TrimPrefix(key, prefix)] = content
	})
	return out
}

// jsonLD returns every parseable ld+json block; malformed blocks are
// skipped. The result is nil when there are none.
func jsonLD(doc *goquery.Document) []json.RawMessage {
	var out []json.RawMessage
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := []byte(strings.TrimSpace(s.Text()))
		if len(raw) == 0 || !json.Valid(raw) {
			return
		}
		out = append(out, json.RawMessage(raw))
	})
	return out
}

// microdata reads [itemtype] scopes. Within a scope a repeated itemprop
// overwrites the earlier value.
func microdata(doc *goquery.Document) []models.MicrodataItem {
	var items []models.MicrodataItem
	doc.Find("[itemtype]").Each(func(_ int, scope *goquery.Selection) {
		item := models.MicrodataItem{
			ItemType:   attrOf(scope, "itemtype"),
			Properties: map[string]string{},
		}
		scope.Find("[itemprop]").Each(func(_ int, p *goquery.Selection) {
			name, _ := p.Attr("itemprop")
			item.Properties[name] = itempropValue(p)
		})
		items = append(items, item)
	})
	return items
}

func itempropValue(p *goquery.Selection) string {
	for _, attr := range []string{"content", "href", "src"} {
		if v, _ := p.Attr(attr); v != "" {
			return v
		}
	}
	return trimmedText(p)
}

func allMeta(doc *goquery.Document) []models.MetaTag {
	out := []models.MetaTag{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		tag := models.MetaTag{
			Name:      attrOf(s, "name"),
			Property:  attrOf(s, "property"),
			Content:   attrOf(s, "content"),
			HTTPEquiv: attrOf(s, "http-equiv"),
			Charset:   attrOf(s, "charset"),
		}
		if tag != (models.MetaTag{}) {
			out = append(out, tag)
		}
	})
	return out
}
