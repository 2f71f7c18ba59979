package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dutycal/internal/httpx"
)

func TestFetcherUsesETagAndCache(t *testing.T) {
	var calls, failing atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() == 1 {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	f.SetRetry(httpx.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	ctx := context.Background()

	first, err := f.Fetch(ctx, srv.URL+"/roster.ics")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || len(first.Body) == 0 {
		t.Errorf("first = %+v", first)
	}

	second, err := f.Fetch(ctx, srv.URL+"/roster.ics")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != string(first.Body) {
		t.Errorf("second = %+v", second)
	}

	failing.Store(1)
	third, err := f.Fetch(ctx, srv.URL+"/roster.ics")
	if err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if !third.FromCache || string(third.Body) != string(first.Body) {
		t.Errorf("third = %+v", third)
	}
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error")
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
}
