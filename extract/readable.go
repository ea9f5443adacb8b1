package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Article is the readability-reduced body of a page.
type Article struct {
	Title   string
	Content string
}

// Readable runs the Mozilla Readability algorithm on rawHTML. It reports
// false when the algorithm fails or finds no content; there is no raw-HTML
// fallback, the caller emits null instead.
//
// Readability mutates the tree it works on, so it parses its own copy
// rather than sharing the pipeline Document.
func Readable(rawHTML, pageURL string) (Article, bool) {
	parsedURL, err := nurl.Parse(pageURL)
	if err != nil {
		slog.Warn("readability: invalid page URL", "url", pageURL, "error", err)
		return Article{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed", "url", pageURL, "error", err)
		return Article{}, false
	}
	if strings.TrimSpace(article.Content) == "" {
		return Article{}, false
	}
	return Article{Title: article.Title, Content: article.Content}, true
}
