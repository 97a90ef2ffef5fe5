package app

import (
	"errors"
	"testing"
	"time"

	"github.com/czkultura/dataserve/internal/config"
	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/refresh"
	"github.com/czkultura/dataserve/internal/snapshot"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: 15 * time.Second,
		},
		Data: config.DataConfig{Dir: dir},
		Probe: config.ProbeConfig{
			RequestTimeout: 3 * time.Second,
			RefreshTimeout: 10 * time.Second,
		},
		Refresh: config.RefreshConfig{
			Enabled: true,
			At:      "06:00",
			Poll:    30 * time.Second,
		},
		Misc: config.MiscConfig{
			GinMode:  "test",
			Timezone: "UTC",
			LogLevel: "info",
		},
	}
}

func newTestDeps(t *testing.T) (*config.Config, *dataset.Registry, *snapshot.Store, probe.Prober) {
	t.Helper()
	dir := t.TempDir()
	reg, err := dataset.NewRegistry(dir)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return testConfig(dir), reg, snapshot.NewStore(), probe.NewHTTPProber()
}

func TestNew_NilDependencies(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)

	tests := []struct {
		name string
		fn   func() (*App, error)
	}{
		{"nil config", func() (*App, error) { return New(nil, reg, store, prober) }},
		{"nil registry", func() (*App, error) { return New(cfg, nil, store, prober) }},
		{"nil store", func() (*App, error) { return New(cfg, reg, nil, prober) }},
		{"nil prober", func() (*App, error) { return New(cfg, reg, store, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNew_WiresPipeline(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)

	a, err := New(cfg, reg, store, prober)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown()

	if a.Cache == nil || a.Service == nil || a.Watcher == nil || a.Refresh == nil {
		t.Error("expected all pipeline components to be wired")
	}
	if a.BaseCtx == nil {
		t.Fatal("expected a lifecycle context")
	}
	select {
	case <-a.BaseCtx.Done():
		t.Error("lifecycle context should not start cancelled")
	default:
	}
}

func TestNew_InvalidTriggerTime(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)
	cfg.Refresh.At = "6am"

	if _, err := New(cfg, reg, store, prober); err == nil {
		t.Error("expected an error for a malformed trigger time")
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)
	cfg.Misc.Timezone = "Mars/Olympus"

	if _, err := New(cfg, reg, store, prober); err == nil {
		t.Error("expected an error for an unknown timezone")
	}
}

func TestApp_Shutdown(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)

	a, err := New(cfg, reg, store, prober)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.Shutdown()
	select {
	case <-a.BaseCtx.Done():
	case <-time.After(time.Second):
		t.Error("shutdown should cancel the lifecycle context")
	}

	var nilApp *App
	nilApp.Shutdown() // must not panic
}

func TestApp_StartBackground_RefreshDisabled(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)
	cfg.Refresh.Enabled = false

	a, err := New(cfg, reg, store, prober)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown()

	if err := a.StartBackground(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApp_StartBackground_RegistersRefreshLoop(t *testing.T) {
	cfg, reg, store, prober := newTestDeps(t)

	a, err := New(cfg, reg, store, prober)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := a.StartBackground(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Refresh.Start(a.BaseCtx); !errors.Is(err, refresh.ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted for a second registration, got %v", err)
	}

	a.Shutdown()

	// Deregistration rides on the loop goroutine noticing the cancel.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := a.Refresh.Start(a.BaseCtx); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh loop did not deregister after shutdown")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
