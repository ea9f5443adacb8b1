package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Extractor names accepted in ScrapeRequest.Extractors.
const (
	ExtractorLinks    = "links"
	ExtractorImages   = "images"
	ExtractorHeadings = "headings"
	ExtractorText     = "text"
	ExtractorPrices   = "prices"
	ExtractorTables   = "tables"
)

// AllExtractors is the default extractor set, in canonical order.
var AllExtractors = []string{
	ExtractorLinks,
	ExtractorImages,
	ExtractorHeadings,
	ExtractorText,
	ExtractorPrices,
	ExtractorTables,
}

const (
	// DefaultWaitFor is the post-challenge settle time in milliseconds.
	DefaultWaitFor = 3000

	// MaxWaitFor is the largest accepted waitFor value.
	MaxWaitFor = 60000

	// MaxBatchURLs caps the number of URLs in one batch request.
	MaxBatchURLs = 10
)

// ScrapeRequest is the payload for POST /api/scrape and /api/scrape/async.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,http_url"`

	// WaitFor is extra render time in milliseconds after challenge handling.
	// Only the first 5s are actually slept. Default: 3000.
	WaitFor *int `json:"waitFor,omitempty" binding:"omitempty,min=0,max=60000"`

	// Extractors selects which structured views are added to the result.
	// Default: all six.
	Extractors []string `json:"extractors,omitempty" binding:"omitempty,dive,oneof=links images headings text prices tables"`

	// FullHTML includes the raw captured HTML under "fullHtml".
	FullHTML bool `json:"fullHtml,omitempty"`

	// Screenshot includes a viewport PNG as a data URI.
	Screenshot bool `json:"screenshot,omitempty"`

	// WebhookURL receives a job.completed / job.failed event for async scrapes.
	WebhookURL string `json:"webhookUrl,omitempty" binding:"omitempty,http_url"`
}

// Defaults applies default values to unset fields and collapses duplicate
// extractor names.
func (r *ScrapeRequest) Defaults() {
	if r.WaitFor == nil {
		w := DefaultWaitFor
		r.WaitFor = &w
	}
	if len(r.Extractors) == 0 {
		r.Extractors = append([]string(nil), AllExtractors...)
		return
	}
	seen := make(map[string]struct{}, len(r.Extractors))
	out := r.Extractors[:0]
	for _, name := range r.Extractors {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	r.Extractors = out
}

// Wants reports whether the named extractor was requested.
func (r *ScrapeRequest) Wants(name string) bool {
	for _, e := range r.Extractors {
		if e == name {
			return true
		}
	}
	return false
}

// WaitForMs returns the effective waitFor value.
func (r *ScrapeRequest) WaitForMs() int {
	if r.WaitFor == nil {
		return DefaultWaitFor
	}
	return *r.WaitFor
}

// Validate checks the request against its binding rules. The HTTP layer gets
// the same checks from gin; this is for callers that build requests directly.
func (r *ScrapeRequest) Validate() error {
	return validateStruct(r)
}

// BatchRequest is the payload for POST /api/scrape/batch.
type BatchRequest struct {
	// URLs is the list of target pages. 1 to 10 entries.
	URLs []string `json:"urls" binding:"required,min=1,max=10,dive,http_url"`

	WaitFor    *int     `json:"waitFor,omitempty" binding:"omitempty,min=0,max=60000"`
	Extractors []string `json:"extractors,omitempty" binding:"omitempty,dive,oneof=links images headings text prices tables"`
	FullHTML   bool     `json:"fullHtml,omitempty"`

	// WebhookURL receives one batch.completed event once every URL is terminal.
	WebhookURL string `json:"webhookUrl,omitempty" binding:"omitempty,http_url"`
}

// ScrapeRequestFor builds the per-URL request for one batch entry.
// Screenshots are never taken in batch mode.
func (b *BatchRequest) ScrapeRequestFor(u string) *ScrapeRequest {
	req := &ScrapeRequest{
		URL:        u,
		WaitFor:    b.WaitFor,
		Extractors: append([]string(nil), b.Extractors...),
		FullHTML:   b.FullHTML,
	}
	req.Defaults()
	return req
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validateStruct(v any) error {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
	})
	return validate.Struct(v)
}

// FieldErrors flattens a validation error into per-field messages.
// Non-validation errors (malformed JSON and the like) map to a single
// entry with an empty field.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   jsonFieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// jsonFieldPath turns "ScrapeRequest.Extractors[1]" into "extractors.1".
func jsonFieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.NewReplacer("[", ".", "]", "").Replace(ns)
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		switch p {
		case "URL":
			parts[i] = "url"
		case "URLs":
			parts[i] = "urls"
		case "FullHTML":
			parts[i] = "fullHtml"
		case "WebhookURL":
			parts[i] = "webhookUrl"
		default:
			if p != "" {
				parts[i] = strings.ToLower(p[:1]) + p[1:]
			}
		}
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid http(s) URL"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
