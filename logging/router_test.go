package logging_test

import (
	"context"
	"testing"
	"time"

	"driftboard/server/logging"
	"driftboard/server/logging/sinks"
)

func newTestRouter(t *testing.T, cfg logging.Config) (*logging.Router, *sinks.MemorySink) {
	t.Helper()
	sink := sinks.NewMemorySink()
	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"memory": sink})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	return router, sink
}

func TestRouterDeliversToEnabledSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	router, sink := newTestRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     logging.EventType("collab.selection_admitted"),
		Severity: logging.SeverityInfo,
		Actor:    logging.EntityRef{ID: "user-1", Kind: logging.EntityKindParticipant},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(events))
	}
	if events[0].Actor.ID != "user-1" {
		t.Fatalf("expected actor user-1, got %q", events[0].Actor.ID)
	}
	if events[0].Time.IsZero() {
		t.Fatalf("expected router to stamp event time")
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityWarn
	router, sink := newTestRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityWarn})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	router.Close(ctx)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected only the warn event, got %d events", len(events))
	}
	if events[0].Severity != logging.SeverityWarn {
		t.Fatalf("expected warn severity, got %v", events[0].Severity)
	}
}

func TestRouterMergesConfiguredFields(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.Fields = map[string]any{"whiteboard": "board-1"}
	router, sink := newTestRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityInfo})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	router.Close(ctx)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Extra["whiteboard"] != "board-1" {
		t.Fatalf("expected configured field on event, got %v", events[0].Extra)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(logging.Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error {
	return nil
}

func TestRouterDropsWhenQueueFull(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"blocking"}
	cfg.BufferSize = 1
	blocked := &blockingSink{release: make(chan struct{})}
	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"blocking": blocked})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}

	for i := 0; i < 64; i++ {
		router.Publish(context.Background(), logging.Event{Severity: logging.SeverityInfo})
	}

	stats := router.Stats()
	if stats.EventsTotal+stats.DroppedTotal != 64 {
		t.Fatalf("expected all publishes accounted, got accepted=%d dropped=%d", stats.EventsTotal, stats.DroppedTotal)
	}
	if stats.DroppedTotal < 62 {
		t.Fatalf("expected most publishes dropped with a 1-slot queue and blocked sink, got %d", stats.DroppedTotal)
	}

	close(blocked.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	router.Close(ctx)
}
