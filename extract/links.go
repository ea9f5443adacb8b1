package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pagesift/models"
)

const maxLinkText = 200

// Links returns every navigable anchor in document order. Empty,
// javascript: and in-page fragment hrefs are skipped; duplicates are kept.
func Links(d *Document) []models.Link {
	links := []models.Link{}
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		resolved, _ := d.resolve(href)
		title, _ := s.Attr("title")
		rel, _ := s.Attr("rel")
		links = append(links, models.Link{
			Href:       resolved,
			Text:       truncateRunes(trimmedText(s), maxLinkText),
			Title:      title,
			Rel:        rel,
			IsExternal: d.isExternal(href),
		})
	})
	return links
}

// Images returns img sources and srcset candidates, deduplicated by
// resolved src. The first occurrence of a src wins.
func Images(d *Document) []models.Image {
	var all []models.Image

	d.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := firstNonEmptyAttr(s, "src", "data-src", "data-lazy")
		if src == "" {
			return
		}
		resolved, _ := d.resolve(src)
		alt, _ := s.Attr("alt")
		title, _ := s.Attr("title")
		all = append(all, models.Image{
			Src:    resolved,
			Alt:    alt,
			Title:  title,
			Width:  strAttr(s, "width"),
			Height: strAttr(s, "height"),
		})
	})

	d.doc.Find("[srcset]").Each(func(_ int, s *goquery.Selection) {
		srcset, _ := s.Attr("srcset")
		for _, entry := range strings.Split(srcset, ",") {
			parts := strings.Fields(entry)
			if len(parts) == 0 {
				continue
			}
			resolved, _ := d.resolve(parts[0])
			descriptor := ""
			if len(parts) > 1 {
				descriptor = parts[1]
			}
			all = append(all, models.Image{Src: resolved, Descriptor: &descriptor})
		}
	})

	seen := make(map[string]struct{}, len(all))
	unique := make([]models.Image, 0, len(all))
	for _, img := range all {
		if _, ok := seen[img.Src]; ok {
			continue
		}
		seen[img.Src] = struct{}{}
		unique = append(unique, img)
	}
	return unique
}

func firstNonEmptyAttr(s *goquery.Selection, attrs ...string) string {
	for _, a := range attrs {
		if v, _ := s.Attr(a); v != "" {
			return v
		}
	}
	return ""
}

// strAttr returns the attribute value, or "" when it is absent.
func strAttr(s *goquery.Selection, attr string) *string {
	v, _ := s.Attr(attr)
	return &v
}
