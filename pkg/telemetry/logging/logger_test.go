package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"json", config.LoggingConfig{Level: "info", Format: "json"}, false},
		{"text", config.LoggingConfig{Level: "debug", Format: "text"}, false},
		{"empty defaults", config.LoggingConfig{}, false},
		{"bad level", config.LoggingConfig{Level: "loud"}, true},
		{"bad format", config.LoggingConfig{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be written")
	}
}

func TestNew_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("provider configured", "provider", "openai-gpt4", "api_key", "sk-1234567890abcdef")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["api_key"] != "sk-1***" {
		t.Errorf("api_key = %v, want redacted", rec["api_key"])
	}
	if rec["provider"] != "openai-gpt4" {
		t.Errorf("provider = %v", rec["provider"])
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := map[string]string{
		"":                  "***",
		"short":             "***",
		"sk-abcdefghijklmn": "sk-a***",
	}
	for in, want := range tests {
		if got := RedactAPIKey(in); got != want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithTenant(WithRequestID(context.Background(), "req-1"), "acme")
	FromContext(ctx, base).Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["request_id"] != "req-1" || rec["tenant"] != "acme" {
		t.Errorf("record = %v", rec)
	}

	if RequestID(context.Background()) != "" || Tenant(context.Background()) != "" {
		t.Error("expected empty values on bare context")
	}
	if FromContext(context.Background(), base) != base {
		t.Error("expected same logger when context carries nothing")
	}
}
