package models

import "encoding/json"

// ScrapeResult is the engine output for one page. Extractor fields are
// pointers so that a key is emitted if and only if its extractor ran.
type ScrapeResult struct {
	// URL is the browser's final URL after redirects.
	URL string `json:"url"`

	Crawl    CrawlInfo `json:"crawl"`
	Metadata Metadata  `json:"metadata"`

	// HTML is the readability-reduced article body, or null.
	HTML *string `json:"html"`

	// Markdown is HTML rendered as Markdown, or null.
	Markdown *string `json:"markdown"`

	// ScreenshotURL is a data:image/png;base64 URI, or null.
	ScreenshotURL *string `json:"screenshotUrl"`

	// TimeTaken is the elapsed wall time formatted as "X.XXs".
	TimeTaken string `json:"timeTaken"`

	NetworkSummary NetworkSummary `json:"networkSummary"`

	// Challenge is set only when the bypass protocol ran.
	Challenge *ChallengeInfo `json:"challenge,omitempty"`

	Links    *Collection[Link]  `json:"links,omitempty"`
	Images   *Collection[Image] `json:"images,omitempty"`
	Headings *Headings          `json:"headings,omitempty"`
	Text     *TextContent       `json:"text,omitempty"`
	Prices   *Collection[Price] `json:"prices,omitempty"`
	Tables   *Collection[Table] `json:"tables,omitempty"`
	FullHTML *string            `json:"fullHtml,omitempty"`
}

// CrawlInfo describes how the page was loaded.
type CrawlInfo struct {
	LoadedURL      string `json:"loadedUrl"`
	LoadedTime     string `json:"loadedTime"`
	ReferrerURL    string `json:"referrerUrl"`
	HTTPStatusCode *int   `json:"httpStatusCode"`
	Depth          int    `json:"depth"`
	ContentType    string `json:"contentType"`
}

// Metadata holds document-level information taken from <head> and the
// final document response.
type Metadata struct {
	CanonicalURL string            `json:"canonicalUrl"`
	Title        *string           `json:"title"`
	Description  *string           `json:"description"`
	Author       *string           `json:"author"`
	Keywords     *string           `json:"keywords"`
	LanguageCode *string           `json:"languageCode"`
	Robots       *string           `json:"robots"`
	Favicon      string            `json:"favicon"`
	OpenGraph    map[string]string `json:"openGraph,omitempty"`
	Twitter      map[string]string `json:"twitter,omitempty"`
	JSONLD       []json.RawMessage `json:"jsonLd"`
	Microdata    []MicrodataItem   `json:"microdata,omitempty"`
	AllMeta      []MetaTag         `json:"allMeta"`
	Headers      map[string]string `json:"headers"`
}

// MicrodataItem is one itemtype-bearing element.
type MicrodataItem struct {
	ItemType   string            `json:"itemtype"`
	Properties map[string]string `json:"properties"`
}

// MetaTag lists whichever of the common meta attributes are present.
type MetaTag struct {
	Name      string `json:"name,omitempty"`
	Property  string `json:"property,omitempty"`
	Content   string `json:"content,omitempty"`
	HTTPEquiv string `json:"httpEquiv,omitempty"`
	Charset   string `json:"charset,omitempty"`
}

// Collection is the {total, items} envelope shared by list extractors.
type Collection[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

// NewCollection wraps items, normalising nil to an empty slice.
func NewCollection[T any](items []T) *Collection[T] {
	if items == nil {
		items = []T{}
	}
	return &Collection[T]{Total: len(items), Items: items}
}

// Link is a resolved anchor.
type Link struct {
	Href       string `json:"href"`
	Text       string `json:"text"`
	Title      string `json:"title"`
	Rel        string `json:"rel"`
	IsExternal bool   `json:"isExternal"`
}

// Image is an img source or a srcset candidate. Width and Height are the raw
// attribute values and are set only for img sources; Descriptor is set only
// for srcset candidates.
type Image struct {
	Src        string `json:"src"`
	Alt        string `json:"alt"`
	Title      string `json:"title"`
	Width      *string `json:"width,omitempty"`
	Height     *string `json:"height,omitempty"`
	Descriptor *string `json:"descriptor,omitempty"`
}

// Headings groups heading text by level.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
	H4 []string `json:"h4"`
	H5 []string `json:"h5"`
	H6 []string `json:"h6"`
}

// TextContent summarises the visible body text.
type TextContent struct {
	BodyTextLength  int      `json:"bodyTextLength"`
	BodyTextPreview string   `json:"bodyTextPreview"`
	Paragraphs     []string `json:"paragraphs"`
	ListItems      []string `json:"listItems"`
}

// Price is a currency-like token found inside a price-ish element.
type Price struct {
	Text      string `json:"text"`
	DataPrice string `json:"dataPrice"`
	Element   string `json:"element"`
	Class     string `json:"class"`
}

// Table is one HTML table's header and body cells.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// NetworkSummary counts observed responses by resource type.
type NetworkSummary struct {
	TotalRequests int            `json:"totalRequests"`
	ByType        map[string]int `json:"byType"`
}

// Challenge bypass strategies reported in ChallengeInfo.Strategy.
const (
	ChallengeStrategyNavigation    = "navigation"
	ChallengeStrategyContent       = "content"
	ChallengeStrategyCookiePriming = "cookie-priming"
)

// ChallengeInfo reports the outcome of the bot-challenge protocol.
type ChallengeInfo struct {
	Detected bool   `json:"detected"`
	Resolved bool   `json:"resolved"`
	Strategy string `json:"strategy,omitempty"`
}
