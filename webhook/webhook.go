// Package webhook delivers signed job notifications.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventJobCompleted   = "job.completed"
	EventJobFailed      = "job.failed"
	EventBatchCompleted = "batch.completed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Pagesift-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"jobId"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, jobID string, data any) *Event {
	return &Event{Type: typ, JobID: jobID, Timestamp: time.Now().Unix(), Data: data}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts events with retries. The zero value is not usable; call New.
type Notifier struct {
	secret string
	client *http.Client
	delays []time.Duration
}

// New creates a Notifier. An empty secret sends unsigned bodies.
func New(secret string) *Notifier {
	return &Notifier{
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Deliver sends an event once, synchronously.
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pagesift-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry sends event until it succeeds or the retry schedule
// (immediately, then 1s, 5s, 30s) runs out. It returns the last error.
func (n *Notifier) DeliverWithRetry(ctx context.Context, url string, event *Event) error {
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = n.Deliver(attemptCtx, url, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
			)
			return nil
		}
		slog.Warn("webhook delivery failed",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", url,
		"event", event.Type,
		"job_id", event.JobID,
	)
	return err
}

// DeliverAsync runs DeliverWithRetry in the background. An empty url is a
// no-op.
func (n *Notifier) DeliverAsync(ctx context.Context, url string, event *Event) {
	if url == "" {
		return
	}
	go func() { _ = n.DeliverWithRetry(ctx, url, event) }()
}
