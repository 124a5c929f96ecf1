//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/routing"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"
)

func freeAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// TestServeHydratesFromSQLiteLedger routes a paid request, restarts the
// service on the same SQLite ledger and checks the spend survives.
func TestServeHydratesFromSQLiteLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	up := upstream(t)
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	newConfig := func() *config.Config {
		return config.NewBuilder().
			WithListenAddress(freeAddress(t)).
			WithProvider("openai-gpt4", config.ProviderConfig{
				Kind: "cloud",
				Models: []config.ModelConfig{{
					ID:              "gpt-4o-mini",
					ContextWindow:   128000,
					InputCostPer1K:  1,
					OutputCostPer1K: 2,
					MaxOutputTokens: 1024,
				}},
				Connection: config.ConnectionConfig{BaseURL: up.URL, APIKey: "test-key"},
			}).
			WithSQLiteLedger(dbPath, "sqlite").
			WithRollover(false).
			Build()
	}

	start := func(cfg *config.Config) (*app, context.CancelFunc, chan error) {
		a, err := newApp(cfg, logging.Discard())
		if err != nil {
			t.Fatalf("newApp() error = %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- a.serve(ctx) }()

		if !waitForHealthy("http://"+cfg.Server.ListenAddress+"/health/ready", 10*time.Second) {
			cancel()
			t.Fatal("server did not become ready")
		}
		return a, cancel, done
	}
	stop := func(a *app, cancel context.CancelFunc, done chan error) {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve() error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("serve did not return")
		}
		if err := a.close(); err != nil {
			t.Errorf("close() error = %v", err)
		}
	}

	cfg := newConfig()
	a, cancel, done := start(cfg)

	body := bytes.NewBufferString(`{"tenant_id":"acme","prompt":"hello"}`)
	resp, err := http.Post("http://"+cfg.Server.ListenAddress+"/v1/route", "application/json", body)
	if err != nil {
		t.Fatalf("POST /v1/route: %v", err)
	}
	var out routing.AIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	// 10 input and 5 output tokens at 1 and 2 per 1K.
	const wantCost = 0.02
	if math.Abs(out.Cost-wantCost) > 1e-9 {
		t.Fatalf("cost = %v, want %v", out.Cost, wantCost)
	}
	stop(a, cancel, done)

	a, cancel, done = start(newConfig())
	defer stop(a, cancel, done)

	if got := a.guardrails.Usage("acme").Monthly; math.Abs(got-wantCost) > 1e-9 {
		t.Errorf("hydrated monthly usage = %v, want %v", got, wantCost)
	}
}
