package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	cause := errors.New("bad yaml")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("config.yaml", cause), ExitConfig},
		{"wrapped config", fmt.Errorf("run: %w", NewConfigError("", cause)), ExitConfig},
		{"command", NewCommandError("run", cause), ExitError},
		{"plain", cause, ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	if got := NewConfigError("a.yaml", cause).Error(); got != "config error in a.yaml: boom" {
		t.Errorf("ConfigError = %q", got)
	}
	if got := NewConfigError("", cause).Error(); got != "config error: boom" {
		t.Errorf("ConfigError without path = %q", got)
	}
	err := NewCommandError("providers", cause)
	if got := err.Error(); got != "command providers failed: boom" {
		t.Errorf("CommandError = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
}
