package browser

import (
	"sync"

	"github.com/use-agent/pagesift/models"
)

// ResourceDocument is the resource type of HTML document responses.
const ResourceDocument = "document"

// NetworkEntry is one observed response.
type NetworkEntry struct {
	URL          string
	Status       int
	ResourceType string
	MainFrame    bool

	// MIMEType and Headers are kept for document responses only.
	MIMEType string
	Headers  map[string]string
}

// NetworkLog is an append-only record of responses seen by a session.
// Appends come from the event goroutine while the engine reads, so every
// method takes the lock.
type NetworkLog struct {
	mu      sync.Mutex
	entries []NetworkEntry
}

// NewNetworkLog returns an empty log.
func NewNetworkLog() *NetworkLog {
	return &NetworkLog{}
}

// Append records one response. Headers on non-document entries are dropped.
func (l *NetworkLog) Append(e NetworkEntry) {
	if e.ResourceType != ResourceDocument {
		e.Headers = nil
		e.MIMEType = ""
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Len returns the number of recorded responses.
func (l *NetworkLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l *NetworkLog) Entries() []NetworkEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]NetworkEntry(nil), l.entries...)
}

// LastDocument returns the most recent main-frame document response.
func (l *NetworkLog) LastDocument() (*Response, bool) {
	return l.lastDocumentFrom(0)
}

// DocumentSince returns the most recent main-frame document response
// recorded at or after index mark (a value previously returned by Len).
func (l *NetworkLog) DocumentSince(mark int) (*Response, bool) {
	return l.lastDocumentFrom(mark)
}

func (l *NetworkLog) lastDocumentFrom(mark int) (*Response, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= mark && i >= 0; i-- {
		e := l.entries[i]
		if e.ResourceType == ResourceDocument && e.MainFrame {
			headers := make(map[string]string, len(e.Headers))
			for k, v := range e.Headers {
				headers[k] = v
			}
			return &Response{URL: e.URL, Status: e.Status, MIMEType: e.MIMEType, Headers: headers}, true
		}
	}
	return nil, false
}

// Summary aggregates the log into per-type counts.
func (l *NetworkLog) Summary() models.NetworkSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	byType := make(map[string]int)
	for _, e := range l.entries {
		byType[e.ResourceType]++
	}
	return models.NetworkSummary{TotalRequests: len(l.entries), ByType: byType}
}
