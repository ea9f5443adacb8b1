package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/pagesift/api/middleware"
	"github.com/use-agent/pagesift/jobs"
	"github.com/use-agent/pagesift/models"
	"github.com/use-agent/pagesift/webhook"
)

// Runner executes scrapes that outlive their HTTP request. All of them run
// on ctx, so cancelling it stops every in-flight background scrape.
type Runner struct {
	ctx      context.Context
	engine   Engine
	ledger   *jobs.Ledger
	notifier *webhook.Notifier
}

// NewRunner creates a Runner. notifier may be nil to disable webhooks.
func NewRunner(ctx context.Context, eng Engine, ledger *jobs.Ledger, notifier *webhook.Notifier) *Runner {
	return &Runner{ctx: ctx, engine: eng, ledger: ledger, notifier: notifier}
}

// run scrapes req and records the outcome on job id.
func (r *Runner) run(id string, req *models.ScrapeRequest) jobs.Record {
	result, err := r.engine.Scrape(r.ctx, req)
	if err != nil {
		slog.Debug("job failed", "job_id", id, "url", req.URL, "error", err)
		r.ledger.Fail(id, err.Error())
	} else {
		r.ledger.Complete(id, result)
	}
	rec, _ := r.ledger.Get(id)
	return rec
}

func (r *Runner) notify(url string, event *webhook.Event) {
	if r.notifier == nil || url == "" {
		return
	}
	r.notifier.DeliverAsync(r.ctx, url, event)
}

// ScrapeAsync returns a handler for POST /api/scrape/async.
func ScrapeAsync(r *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err)
			return
		}
		req.Defaults()

		id := uuid.NewString()
		r.ledger.Create(id, req.URL, "")
		slog.Debug("job queued", "job_id", id, "url", req.URL, "key_id", middleware.KeyID(c))

		go func() {
			rec := r.run(id, &req)
			typ := webhook.EventJobCompleted
			if rec.Status == jobs.StatusFailed {
				typ = webhook.EventJobFailed
			}
			r.notify(req.WebhookURL, webhook.NewEvent(typ, id, rec))
		}()

		c.JSON(http.StatusOK, models.AsyncResponse{
			Success: true,
			JobID:   id,
			Message: "Scraping started. Poll /api/jobs/:jobId for results.",
		})
	}
}

// batchSummary is the data of a batch.completed event.
type batchSummary struct {
	BatchID string         `json:"batchId"`
	Jobs    []jobs.Summary `json:"jobs"`
}

// ScrapeBatch returns a handler for POST /api/scrape/batch. Every URL runs
// in its own goroutine as its own job.
func ScrapeBatch(r *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err)
			return
		}

		batchID := uuid.NewString()
		jobIDs := make([]string, len(req.URLs))
		for i, u := range req.URLs {
			jobIDs[i] = uuid.NewString()
			r.ledger.Create(jobIDs[i], u, batchID)
		}

		go r.runBatch(batchID, jobIDs, &req)

		c.JSON(http.StatusOK, models.BatchResponse{
			Success: true,
			BatchID: batchID,
			JobIDs:  jobIDs,
			Message: "Batch scraping started.",
		})
	}
}

func (r *Runner) runBatch(batchID string, jobIDs []string, req *models.BatchRequest) {
	summaries := make([]jobs.Summary, len(jobIDs))

	var wg sync.WaitGroup
	for i, u := range req.URLs {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			summaries[idx] = r.run(jobIDs[idx], req.ScrapeRequestFor(target)).Summary()
		}(i, u)
	}
	wg.Wait()

	failed := 0
	for _, s := range summaries {
		if s.Status == jobs.StatusFailed {
			failed++
		}
	}
	slog.Info("batch finished",
		"batch_id", batchID,
		"total", len(jobIDs),
		"failed", failed,
	)

	r.notify(req.WebhookURL, webhook.NewEvent(webhook.EventBatchCompleted, batchID,
		batchSummary{BatchID: batchID, Jobs: summaries}))
}
