package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

func TestNewServerUsesPortAndTimeouts(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090"}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 || srv.WriteTimeout == 0 {
		t.Fatalf("expected timeouts to be set")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Setenv("CALENDAR_PROVIDER", "memory")
	t.Setenv("EMAIL_PROVIDER", "stub")
	t.Setenv("PORT", "0")
	cfg := appconfig.Load()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logging.Discard()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunFailsOnBadConfig(t *testing.T) {
	cfg := &appconfig.Config{Port: "0", SlotStore: "cassandra"}
	if err := run(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatal("expected error for unknown slot store")
	}
}
