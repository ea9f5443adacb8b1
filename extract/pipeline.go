package extract

import (
	"log/slog"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/pagesift/models"
)

// Input is the captured page handed to the pipeline.
type Input struct {
	HTML    string
	PageURL string
	Headers map[string]string
}

// Pipeline runs every requested extractor over one parsed Document.
// The Markdown converter is created once and shared; a Pipeline is safe for
// concurrent use.
type Pipeline struct {
	md *converter.Converter
}

// NewPipeline initialises the Pipeline with a pre-configured converter.
func NewPipeline() *Pipeline {
	return &Pipeline{md: newMarkdownConverter()}
}

// Run fills the extraction-owned fields of a result: metadata, html,
// markdown, the requested extractor keys and fullHtml. Browser-owned fields
// (url, crawl, screenshot, timing, network) are left for the caller.
//
// Extractors run concurrently and write disjoint fields. A panicking
// extractor is logged and yields its empty value; the rest are unaffected.
func (p *Pipeline) Run(in Input, req *models.ScrapeRequest) *models.ScrapeResult {
	res := &models.ScrapeResult{}

	doc, err := Parse(in.HTML, in.PageURL)
	if err != nil {
		slog.Warn("html parse failed, extracting from empty document", "url", in.PageURL, "error", err)
		doc, _ = Parse("", in.PageURL)
	}

	var g errgroup.Group

	g.Go(func() error {
		res.Metadata = guard("metadata", func() models.Metadata {
			return Metadata(doc, in.Headers)
		}, emptyMetadata(in))
		return nil
	})

	g.Go(func() error {
		res.HTML, res.Markdown = guard2("readable", func() (*string, *string) {
			return p.readable(in)
		})
		return nil
	})

	if req.Wants(models.ExtractorLinks) {
		g.Go(func() error {
			res.Links = guard("links", func() *models.Collection[models.Link] {
				return models.NewCollection(Links(doc))
			}, models.NewCollection[models.Link](nil))
			return nil
		})
	}
	if req.Wants(models.ExtractorImages) {
		g.Go(func() error {
			res.Images = guard("images", func() *models.Collection[models.Image] {
				return models.NewCollection(Images(doc))
			}, models.NewCollection[models.Image](nil))
			return nil
		})
	}
	if req.Wants(models.ExtractorHeadings) {
		g.Go(func() error {
			res.Headings = guard("headings", func() *models.Headings {
				return Headings(doc)
			}, emptyHeadings())
			return nil
		})
	}
	if req.Wants(models.ExtractorText) {
		g.Go(func() error {
			res.Text = guard("text", func() *models.TextContent {
				return Text(doc)
			}, &models.TextContent{Paragraphs: []string{}, ListItems: []string{}})
			return nil
		})
	}
	if req.Wants(models.ExtractorPrices) {
		g.Go(func() error {
			res.Prices = guard("prices", func() *models.Collection[models.Price] {
				return models.NewCollection(Prices(doc))
			}, models.NewCollection[models.Price](nil))
			return nil
		})
	}
	if req.Wants(models.ExtractorTables) {
		g.Go(func() error {
			res.Tables = guard("tables", func() *models.Collection[models.Table] {
				return models.NewCollection(Tables(doc))
			}, models.NewCollection[models.Table](nil))
			return nil
		})
	}

	_ = g.Wait()

	if req.FullHTML {
		full := in.HTML
		res.FullHTML = &full
	}
	return res
}

func (p *Pipeline) readable(in Input) (*string, *string) {
	article, ok := Readable(in.HTML, in.PageURL)
	if !ok {
		return nil, nil
	}
	md, err := ToMarkdown(p.md, article, in.PageURL)
	if err != nil {
		slog.Warn("markdown conversion failed", "url", in.PageURL, "error", err)
		return optional(article.Content), nil
	}
	return optional(article.Content), optional(md)
}

// guard runs fn, substituting fallback if it panics.
func guard[T any](name string, fn func() T, fallback T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extractor panicked", "extractor", name, "panic", r)
			out = fallback
		}
	}()
	return fn()
}

func guard2[A, B any](name string, fn func() (A, B)) (a A, b B) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extractor panicked", "extractor", name, "panic", r)
			var za A
			var zb B
			a, b = za, zb
		}
	}()
	return fn()
}

func emptyMetadata(in Input) models.Metadata {
	headers := in.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return models.Metadata{
		CanonicalURL: in.PageURL,
		Favicon:      defaultFavicon,
		AllMeta:      []models.MetaTag{},
		Headers:      headers,
	}
}

func emptyHeadings() *models.Headings {
	return &models.Headings{
		H1: []string{}, H2: []string{}, H3: []string{},
		H4: []string{}, H5: []string{}, H6: []string{},
	}
}
