package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig, gotUA string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotUA = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New("s3cret")
	ev := NewEvent(EventJobCompleted, "job-1", map[string]string{"url": "https://example.com"})
	if err := n.Deliver(context.Background(), srv.URL, ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotSig != Sign("s3cret", gotBody) {
		t.Errorf("signature = %q, want %q", gotSig, Sign("s3cret", gotBody))
	}
	if gotUA != "Pagesift-Webhook/1.0" {
		t.Errorf("user agent = %q", gotUA)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != EventJobCompleted || decoded["jobId"] != "job-1" {
		t.Errorf("body = %s", gotBody)
	}
}

func TestDeliver_UnsignedWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Error("signature header should be absent")
		}
	}))
	defer srv.Close()

	if err := New("").Deliver(context.Background(), srv.URL, NewEvent(EventJobFailed, "j", nil)); err != nil {
		t.Fatal(err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := New("").Deliver(context.Background(), srv.URL, NewEvent(EventJobFailed, "j", nil)); err == nil {
		t.Error("5xx should be an error")
	}
}

func TestDeliverWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New("")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}
	if err := n.DeliverWithRetry(context.Background(), srv.URL, NewEvent(EventBatchCompleted, "b", nil)); err != nil {
		t.Fatalf("DeliverWithRetry: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDeliverWithRetry_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := New("")
	n.delays = []time.Duration{0, time.Millisecond}
	if err := n.DeliverWithRetry(context.Background(), srv.URL, NewEvent(EventJobFailed, "j", nil)); err == nil {
		t.Error("expected the last error")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}
