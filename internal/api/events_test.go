package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/events"
	"github.com/narratage/narratage/internal/metrics"
	"github.com/rs/zerolog"
)

func TestStreamEventsReplay(t *testing.T) {
	bus := events.NewBus(16)
	bus.Publish("audio", "s1", map[string]string{"key": "audio/a.wav"})
	bus.Publish("image", "s1", map[string]string{"key": "images/a.png"})
	first := bus.ReplaySince("", events.Filter{})[0]

	r := chi.NewRouter()
	r.Get("/events/stream", NewEventsHandler(bus).StreamEvents)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", first.ID)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to replay, then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: image") {
		t.Errorf("replay missing image event: %q", body)
	}
	if strings.Contains(body, "event: audio") {
		t.Errorf("replay should start after Last-Event-ID: %q", body)
	}
}

func TestStreamEventsLive(t *testing.T) {
	bus := events.NewBus(16)

	r := chi.NewRouter()
	r.Get("/events/stream", NewEventsHandler(bus).StreamEvents)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events/stream?types=audio", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the subscription to land before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish("image", "s1", nil)
	bus.Publish("audio", "s1", map[string]string{"key": "audio/a.wav"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: audio") {
		t.Errorf("live audio event not delivered: %q", body)
	}
	if strings.Contains(body, "event: image") {
		t.Errorf("type filter not applied: %q", body)
	}
}

// Streaming must survive the full middleware chain NewServer installs: the
// metrics wrapper in particular has to keep exposing http.Flusher.
func TestStreamEventsThroughMiddleware(t *testing.T) {
	bus := events.NewBus(16)
	bus.Publish("audio", "s1", map[string]string{"key": "audio/a.wav"})

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(zerolog.Nop()))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)
	r.Get("/api/v1/events/stream", NewEventsHandler(bus).StreamEvents)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/v1/events/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "0-0")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q, want 200 streaming", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "event: audio") {
		t.Errorf("replay not delivered through middleware chain: %q", rec.Body)
	}
}

var _ http.Flusher = (*httptest.ResponseRecorder)(nil)
