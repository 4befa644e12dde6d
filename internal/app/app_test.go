package app

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testAppConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		ProviderBaseURL: "https://api.global.example/v1",
		ProviderAPIKey:  "global-key",
	}
	cfg.ApplyDefaults()
	cfg.Server.Port = 0 // ephemeral port
	cfg.Shutdown.Timeout = 2 * time.Second
	return cfg
}

func TestNewBuildsAppFromValidConfig(t *testing.T) {
	a, err := New(testAppConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.gw == nil || a.server == nil {
		t.Error("expected non-nil gateway and server")
	}
	if a.meter != nil {
		t.Error("expected nil meter when usage.track is false")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.ProviderBaseURL = ""
	if _, err := New(cfg, slog.Default()); err == nil {
		t.Error("expected New to fail validation for missing provider_base_url")
	}
}

func TestCatalogFromConfigDerivesReasoningAvailability(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.BigModel.Model = "openai/gpt-5"
	catalog := catalogFromConfig(cfg)
	if !catalog.ReasoningAvailable {
		t.Error("expected ReasoningAvailable=true for a reasoning-capable big model")
	}

	cfg.BigModel.Model = "openai/gpt-4o"
	catalog = catalogFromConfig(cfg)
	if catalog.ReasoningAvailable {
		t.Error("expected ReasoningAvailable=false for a non-reasoning big model")
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	a, err := New(testAppConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bad := testAppConfig(t)
	bad.ProviderBaseURL = ""
	if err := a.Reload(bad); err == nil {
		t.Error("expected Reload to reject invalid config")
	}
}

func TestReloadSwapsRoutingAtomically(t *testing.T) {
	a, err := New(testAppConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	updated := testAppConfig(t)
	updated.BigModel.Model = "openai/gpt-5-updated"
	if err := a.Reload(updated); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if a.cfg.Load().BigModel.Model != "openai/gpt-5-updated" {
		t.Error("expected stored config to reflect reloaded value")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	a, err := New(testAppConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	time.Sleep(20 * time.Millisecond) // let the listener bind
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error on clean shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
