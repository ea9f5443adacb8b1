package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRenderPage(t *testing.T) {
	out := renderPage([]byte(`{"url":"https://example.com/","markdown":"# Hello","metadata":{"title":"Hello"},
		"crawl":{"httpStatusCode":200},"timeTaken":"1.20s"}`))
	for _, want := range []string{"Title: Hello", "Source: https://example.com/", "Status: 200", "# Hello", "Time: 1.20s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if out := renderPage([]byte(`{"url":"u","markdown":null}`)); !strings.Contains(out, "no readable content") {
		t.Errorf("null markdown output = %q", out)
	}
}

func TestWaitJob(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			t.Error("api key header missing")
		}
		if polls.Add(1) < 3 {
			w.Write([]byte(`{"jobId":"j","status":"running","url":"u"}`))
			return
		}
		w.Write([]byte(`{"jobId":"j","status":"completed","url":"u","data":{"url":"u"}}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, apiKey: "k", http: srv.Client(), poll: time.Millisecond}
	rec, err := c.waitJob(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "completed" || polls.Load() != 3 {
		t.Errorf("rec = %+v, polls = %d", rec, polls.Load())
	}
}

func TestWaitJob_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Job not found"}`))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, http: srv.Client(), poll: time.Millisecond}
	if _, err := c.waitJob(context.Background(), "missing"); err == nil {
		t.Error("expected an error for a missing job")
	}
}

func TestEnvelopeError(t *testing.T) {
	env := scrapeEnvelope{Error: "timed out", Code: "SCRAPE_TIMEOUT"}
	if got := envelopeError(env); got != "[SCRAPE_TIMEOUT] timed out" {
		t.Errorf("got %q", got)
	}
}
