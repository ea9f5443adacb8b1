// Package jobs tracks asynchronous and batched scrapes in memory.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/pagesift/models"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the full state of one job as returned by GET /api/jobs/:jobId.
type Record struct {
	JobID       string               `json:"jobId"`
	Status      Status               `json:"status"`
	URL         string               `json:"url"`
	BatchID     string               `json:"batchId,omitempty"`
	CreatedAt   string               `json:"createdAt"`
	CompletedAt string               `json:"completedAt,omitempty"`
	Data        *models.ScrapeResult `json:"data,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Summary is a Record without its result payload.
type Summary struct {
	JobID       string `json:"jobId"`
	Status      Status `json:"status"`
	URL         string `json:"url"`
	BatchID     string `json:"batchId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	CompletedAt string `json:"completedAt,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Summary drops the result payload.
func (r Record) Summary() Summary {
	return Summary{
		JobID:       r.JobID,
		Status:      r.Status,
		URL:         r.URL,
		BatchID:     r.BatchID,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

// entry holds a record with its completion time for Sweep.
type entry struct {
	rec    Record
	doneAt time.Time
}

// Ledger is an in-memory job store. It is safe for concurrent use.
// Readers always receive copies; nothing inside the map escapes the lock.
type Ledger struct {
	mu    sync.RWMutex
	store map[string]*entry
	order []string // creation order, for List
	now   func() time.Time
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		store: make(map[string]*entry),
		now:   time.Now,
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Create registers a running job. batchID may be empty. An id that is
// already known is left as it is.
func (l *Ledger) Create(id, url, batchID string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.store[id]; exists {
		return
	}
	l.order = append(l.order, id)
	l.store[id] = &entry{
		rec: Record{
			JobID:     id,
			Status:    StatusRunning,
			URL:       url,
			BatchID:   batchID,
			CreatedAt: stamp(now),
		},
	}
}

// Complete marks a running job completed with its result. Unknown ids and
// jobs already terminal are left untouched.
func (l *Ledger) Complete(id string, result *models.ScrapeResult) {
	l.finish(id, func(r *Record) {
		r.Status = StatusCompleted
		r.Data = result
	})
}

// Fail marks a running job failed with message. Unknown ids and jobs
// already terminal are left untouched.
func (l *Ledger) Fail(id, message string) {
	l.finish(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = message
	})
}

func (l *Ledger) finish(id string, apply func(*Record)) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.store[id]
	if !ok || e.rec.Status.Terminal() {
		return
	}
	apply(&e.rec)
	e.rec.CompletedAt = stamp(now)
	e.doneAt = now
}

// Get returns a copy of the record for id. The result behind Data is
// shared and must be treated as read-only.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.store[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// List returns summaries of every job in creation order.
func (l *Ledger) List() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, 0, len(l.store))
	for _, id := range l.order {
		e, ok := l.store[id]
		if !ok {
			continue
		}
		out = append(out, e.rec.Summary())
	}
	return out
}

// Sweep drops terminal jobs that finished more than ttl ago and returns how
// many were removed. Running jobs are never dropped.
func (l *Ledger) Sweep(ttl time.Duration) int {
	cutoff := l.now().Add(-ttl)
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	kept := l.order[:0]
	for _, id := range l.order {
		e := l.store[id]
		if e.rec.Status.Terminal() && e.doneAt.Before(cutoff) {
			delete(l.store, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
	return removed
}

// StartJanitor sweeps every interval until ctx is done. A non-positive ttl
// or interval disables it.
func (l *Ledger) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(ttl); n > 0 {
					slog.Debug("job ledger swept", "removed", n)
				}
			}
		}
	}()
}
