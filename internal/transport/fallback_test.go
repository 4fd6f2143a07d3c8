package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"echodesk/internal/domain"
)

func TestFallbackProbeSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := NewFallback(srv.URL, time.Second, nil)
	if err := f.Probe(context.Background()); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
}

func TestFallbackProbeFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	f := NewFallback(srv.URL, time.Second, nil)
	err := f.Probe(context.Background())
	if !errors.Is(err, domain.ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestFallbackSendText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var msg map[string]string
		if err := json.Unmarshal(body, &msg); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if msg["type"] != "text" || msg["text"] != "hello" {
			http.Error(w, "unexpected message", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"response","message":"hi","success":true}`))
	}))
	t.Cleanup(srv.Close)

	f := NewFallback(srv.URL, time.Second, nil)
	raw, err := f.SendText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var resp struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Message != "hi" || !resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFallbackSendTextServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	f := NewFallback(srv.URL, time.Second, nil)
	if _, err := f.SendText(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
