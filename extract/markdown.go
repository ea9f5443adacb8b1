package extract

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: drops script, style, iframe, noscript and comments.
//   - commonmark plugin: ATX headings, "*" bullets, fenced code blocks.
//   - table plugin: pipe tables with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle(commonmark.HeadingStyleATX),
				commonmark.WithBulletListMarker("*"),
				commonmark.WithCodeBlockFence("```"),
			),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts an article to Markdown. Relative links and images are
// resolved against domain. A non-empty title becomes a leading H1.
func ToMarkdown(conv *converter.Converter, a Article, domain string) (string, error) {
	md, err := conv.ConvertString(a.Content, converter.WithDomain(domain))
	if err != nil {
		return "", err
	}
	if a.Title != "" {
		md = "# " + a.Title + "\n\n" + md
	}
	return md, nil
}
