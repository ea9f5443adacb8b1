package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pagesift/models"
)

// priceMatchers are tried in order; a token found by an earlier selector is
// not reported again for a later one.
var priceMatchers = compileAll(
	`[class*="price"]`,
	`[class*="Price"]`,
	`[id*="price"]`,
	`[id*="Price"]`,
	`[data-price]`,
	`[itemprop="price"]`,
	`[class*="cost"]`,
	`[class*="amount"]`,
)

var priceToken = regexp.MustCompile(`(?i)[$€£₺₹]?\s*[\d,.]+\s*(?:TL|USD|EUR|GBP|₺|TRY)?`)

func compileAll(selectors ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(selectors))
	for i, s := range selectors {
		out[i] = cascadia.MustCompile(s)
	}
	return out
}

// Prices returns currency-like tokens from price-ish elements, deduplicated
// by literal text.
func Prices(d *Document) []models.Price {
	prices := []models.Price{}
	seen := make(map[string]struct{})

	for _, m := range priceMatchers {
		d.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
			text := trimmedText(s)
			dataPrice := firstNonEmptyAttr(s, "data-price", "content")
			class, _ := s.Attr("class")

			for _, tok := range priceToken.FindAllString(text, -1) {
				tok = strings.TrimSpace(tok)
				if n := utf8.RuneCountInString(tok); n <= 1 || n >= 30 {
					continue
				}
				if _, dup := seen[tok]; dup {
					continue
				}
				seen[tok] = struct{}{}
				prices = append(prices, models.Price{
					Text:      tok,
					DataPrice: dataPrice,
					Element:   goquery.NodeName(s),
					Class:     class,
				})
			}
		})
	}
	return prices
}
