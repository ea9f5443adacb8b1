package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/jobs"
	"github.com/use-agent/pagesift/models"
	"github.com/use-agent/pagesift/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	mu     sync.Mutex
	seen   []*models.ScrapeRequest
	scrape func(req *models.ScrapeRequest) (*models.ScrapeResult, error)
}

func (f *fakeEngine) Scrape(_ context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	if f.scrape != nil {
		return f.scrape(req)
	}
	status := 200
	return &models.ScrapeResult{
		URL:       req.URL,
		Crawl:     models.CrawlInfo{LoadedURL: req.URL, HTTPStatusCode: &status},
		TimeTaken: "0.01s",
	}, nil
}

func (f *fakeEngine) ActiveSessions() int { return 2 }

func newTestRouter(eng *fakeEngine, ledger *jobs.Ledger, notifier *webhook.Notifier) *gin.Engine {
	runner := NewRunner(context.Background(), eng, ledger, notifier)
	r := gin.New()
	r.POST("/api/scrape", Scrape(eng))
	r.POST("/api/scrape/async", ScrapeAsync(runner))
	r.POST("/api/scrape/batch", ScrapeBatch(runner))
	r.GET("/api/jobs", ListJobs(ledger))
	r.GET("/api/jobs/:jobId", GetJob(ledger))
	r.GET("/api/health", Health(eng, time.Now().Add(-time.Minute)))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func waitTerminal(t *testing.T, ledger *jobs.Ledger, id string) jobs.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, ok := ledger.Get(id); ok && rec.Status.Terminal() {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never finished", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScrape_Success(t *testing.T) {
	eng := &fakeEngine{}
	r := newTestRouter(eng, jobs.New(), nil)

	w, body := do(t, r, http.MethodPost, "/api/scrape", `{"url":"https://example.com","extractors":["links","links"]}`)
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	data := body["data"].(map[string]any)
	if data["url"] != "https://example.com" {
		t.Errorf("data = %v", data)
	}

	req := eng.seen[0]
	if req.WaitForMs() != models.DefaultWaitFor || len(req.Extractors) != 1 {
		t.Errorf("defaults not applied: %+v", req)
	}
}

func TestScrape_FieldsProjection(t *testing.T) {
	r := newTestRouter(&fakeEngine{}, jobs.New(), nil)

	_, body := do(t, r, http.MethodPost, "/api/scrape?fields=url,,timeTaken,nope", `{"url":"https://example.com"}`)
	data := body["data"].(map[string]any)
	if len(data) != 2 || data["url"] == nil || data["timeTaken"] == nil {
		t.Errorf("projected data = %v", data)
	}
}

func TestScrape_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing url", `{}`, "url"},
		{"bad url", `{"url":"not a url"}`, "url"},
		{"ftp url", `{"url":"ftp://example.com"}`, "url"},
		{"waitFor too large", `{"url":"https://example.com","waitFor":60001}`, "waitFor"},
		{"negative waitFor", `{"url":"https://example.com","waitFor":-1}`, "waitFor"},
		{"unknown extractor", `{"url":"https://example.com","extractors":["links","videos"]}`, "extractors.1"},
		{"malformed json", `{"url":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			r := newTestRouter(eng, jobs.New(), nil)
			w, body := do(t, r, http.MethodPost, "/api/scrape", tt.body)
			if w.Code != http.StatusBadRequest || body["success"] != false {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			errs := body["errors"].([]any)
			first := errs[0].(map[string]any)
			if first["field"] != tt.field || first["message"] == "" {
				t.Errorf("errors = %v, want field %q", errs, tt.field)
			}
			if len(eng.seen) != 0 {
				t.Error("engine must not run on invalid input")
			}
		})
	}
}

func TestScrape_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.NewScrapeError(models.ErrCodeTimeout, "timed out", nil), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{models.NewScrapeError(models.ErrCodeNavigation, "nav", nil), http.StatusBadGateway, models.ErrCodeNavigation},
		{models.NewScrapeError(models.ErrCodeLaunch, "launch", nil), http.StatusBadGateway, models.ErrCodeLaunch},
		{errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			eng := &fakeEngine{scrape: func(*models.ScrapeRequest) (*models.ScrapeResult, error) { return nil, tt.err }}
			r := newTestRouter(eng, jobs.New(), nil)
			w, body := do(t, r, http.MethodPost, "/api/scrape", `{"url":"https://example.com"}`)
			if w.Code != tt.status || body["code"] != tt.code || body["success"] != false {
				t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestScrapeAsync_CompletesJob(t *testing.T) {
	ledger := jobs.New()
	r := newTestRouter(&fakeEngine{}, ledger, nil)

	w, body := do(t, r, http.MethodPost, "/api/scrape/async", `{"url":"https://example.com"}`)
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	id, _ := body["jobId"].(string)
	if id == "" || !strings.Contains(body["message"].(string), "/api/jobs/") {
		t.Fatalf("body = %v", body)
	}

	rec := waitTerminal(t, ledger, id)
	if rec.Status != jobs.StatusCompleted || rec.Data == nil || rec.URL != "https://example.com" {
		t.Errorf("record = %+v", rec)
	}
}

func TestScrapeAsync_FailureAndWebhook(t *testing.T) {
	events := make(chan webhook.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &ev)
		events <- ev
	}))
	defer hook.Close()

	ledger := jobs.New()
	eng := &fakeEngine{scrape: func(*models.ScrapeRequest) (*models.ScrapeResult, error) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "navigation failed after 3 attempts", nil)
	}}
	r := newTestRouter(eng, ledger, webhook.New("k"))

	_, body := do(t, r, http.MethodPost, "/api/scrape/async",
		`{"url":"https://example.com","webhookUrl":"`+hook.URL+`"}`)
	id := body["jobId"].(string)

	rec := waitTerminal(t, ledger, id)
	if rec.Status != jobs.StatusFailed || !strings.Contains(rec.Error, "NAVIGATION_FAILED") {
		t.Errorf("record = %+v", rec)
	}

	select {
	case ev := <-events:
		if ev.Type != webhook.EventJobFailed || ev.JobID != id {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestScrapeBatch(t *testing.T) {
	events := make(chan webhook.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &ev)
		events <- ev
	}))
	defer hook.Close()

	ledger := jobs.New()
	eng := &fakeEngine{}
	r := newTestRouter(eng, ledger, webhook.New(""))

	w, body := do(t, r, http.MethodPost, "/api/scrape/batch",
		`{"urls":["https://a.example","https://b.example"],"webhookUrl":"`+hook.URL+`"}`)
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	batchID := body["batchId"].(string)
	ids := body["jobIds"].([]any)
	if len(ids) != 2 || body["message"] != "Batch scraping started." {
		t.Fatalf("body = %v", body)
	}

	for _, id := range ids {
		rec := waitTerminal(t, ledger, id.(string))
		if rec.BatchID != batchID || rec.Status != jobs.StatusCompleted {
			t.Errorf("record = %+v", rec)
		}
	}

	select {
	case ev := <-events:
		if ev.Type != webhook.EventBatchCompleted || ev.JobID != batchID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch webhook not delivered")
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	for _, req := range eng.seen {
		if req.Screenshot {
			t.Error("batch scrapes never take screenshots")
		}
	}
}

func TestScrapeBatch_Validation(t *testing.T) {
	r := newTestRouter(&fakeEngine{}, jobs.New(), nil)

	many := make([]string, 11)
	for i := range many {
		many[i] = `"https://example.com"`
	}
	for name, body := range map[string]string{
		"empty":    `{"urls":[]}`,
		"too many": `{"urls":[` + strings.Join(many, ",") + `]}`,
		"bad url":  `{"urls":["https://ok.example","nope"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			w, _ := do(t, r, http.MethodPost, "/api/scrape/batch", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	ledger := jobs.New()
	ledger.Create("done", "https://example.com", "")
	ledger.Complete("done", &models.ScrapeResult{URL: "https://example.com/", TimeTaken: "1.00s"})
	r := newTestRouter(&fakeEngine{}, ledger, nil)

	t.Run("not found", func(t *testing.T) {
		w, body := do(t, r, http.MethodGet, "/api/jobs/missing", "")
		if w.Code != http.StatusNotFound || body["error"] != "Job not found" {
			t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
		}
	})

	t.Run("full", func(t *testing.T) {
		_, body := do(t, r, http.MethodGet, "/api/jobs/done", "")
		data := body["data"].(map[string]any)
		if body["status"] != "completed" || data["timeTaken"] != "1.00s" || data["crawl"] == nil {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("projected", func(t *testing.T) {
		_, body := do(t, r, http.MethodGet, "/api/jobs/done?fields=url", "")
		data := body["data"].(map[string]any)
		if len(data) != 1 || data["url"] != "https://example.com/" {
			t.Errorf("data = %v", data)
		}
		if body["jobId"] != "done" || body["status"] != "completed" {
			t.Errorf("record fields should not be projected: %v", body)
		}
	})
}

func TestListJobs(t *testing.T) {
	ledger := jobs.New()
	ledger.Create("a", "https://example.com", "")
	ledger.Complete("a", &models.ScrapeResult{})
	r := newTestRouter(&fakeEngine{}, ledger, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var list []map[string]any
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0]["jobId"] != "a" {
		t.Fatalf("list = %v", list)
	}
	if _, ok := list[0]["data"]; ok {
		t.Error("summaries must not carry data")
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeEngine{}, jobs.New(), nil)
	w, body := do(t, r, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK || body["status"] != "ok" || body["version"] != Version {
		t.Errorf("body = %v", body)
	}
	if up, _ := body["uptime"].(float64); up < 59 {
		t.Errorf("uptime = %v", body["uptime"])
	}
	if body["activeSessions"] != float64(2) {
		t.Errorf("activeSessions = %v", body["activeSessions"])
	}
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{",,", 0},
		{"url", 1},
		{" url , markdown ,", 2},
	}
	for _, tt := range tests {
		if got := parseFields(tt.raw); len(got) != tt.want {
			t.Errorf("parseFields(%q) = %v", tt.raw, got)
		}
	}
}
