package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pagesift/models"
)

const (
	previewRunes      = 1000
	minParagraphRunes = 20
	minListItemRunes  = 5
	maxListItemRunes  = 500
	maxTextItems      = 50
)

// invisible matches elements whose text never renders.
var invisible = cascadia.MustCompile("script, style, noscript, iframe")

// Headings groups trimmed, non-empty heading text by level in document order.
func Headings(d *Document) *models.Headings {
	levels := make([][]string, 6)
	for i := range levels {
		levels[i] = []string{}
		d.doc.Find(fmt.Sprintf("h%d", i+1)).Each(func(_ int, s *goquery.Selection) {
			if t := trimmedText(s); t != "" {
				levels[i] = append(levels[i], t)
			}
		})
	}
	return &models.Headings{
		H1: levels[0], H2: levels[1], H3: levels[2],
		H4: levels[3], H5: levels[4], H6: levels[5],
	}
}

// Text summarises visible body text. Script-like elements are removed from
// a clone so the shared Document is left untouched.
func Text(d *Document) *models.TextContent {
	clone := d.doc.Selection.Clone()
	clone.FindMatcher(invisible).Remove()
	body := strings.Join(strings.Fields(clone.Find("body").Text()), " ")

	paragraphs := []string{}
	d.doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if len(paragraphs) >= maxTextItems {
			return
		}
		if t := trimmedText(s); utf8.RuneCountInString(t) > minParagraphRunes {
			paragraphs = append(paragraphs, t)
		}
	})

	listItems := []string{}
	d.doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		if len(listItems) >= maxTextItems {
			return
		}
		t := trimmedText(s)
		if n := utf8.RuneCountInString(t); n > minListItemRunes && n < maxListItemRunes {
			listItems = append(listItems, t)
		}
	})

	return &models.TextContent{
		BodyTextLength:  utf8.RuneCountInString(body),
		BodyTextPreview: truncateRunes(body, previewRunes),
		Paragraphs:     paragraphs,
		ListItems:      listItems,
	}
}
