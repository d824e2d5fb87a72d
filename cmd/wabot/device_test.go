package main

import (
	"strings"
	"testing"

	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "****"},
		{"sk-1234567890abcd", "sk-1****abcd"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactLeavesOriginal(t *testing.T) {
	cfg := config.Defaults()
	cfg.AI.APIKey = "sk-secretsecretsecret"
	cfg.APIs["weather"] = upstream.Endpoint{
		URL:       "https://x.test/?k={key}",
		Key:       "weatherkey123456",
		Fallbacks: []upstream.Endpoint{{URL: "https://y.test/?k={key}", Key: "fallbackkey12345"}},
	}

	out := redact(cfg)
	if strings.Contains(out.AI.APIKey, "secretsecret") {
		t.Errorf("ai key not masked: %q", out.AI.APIKey)
	}
	if out.APIs["weather"].Key != "weat****3456" {
		t.Errorf("endpoint key = %q", out.APIs["weather"].Key)
	}
	if out.APIs["weather"].Fallbacks[0].Key != "fall****2345" {
		t.Errorf("fallback key = %q", out.APIs["weather"].Fallbacks[0].Key)
	}
	if cfg.AI.APIKey != "sk-secretsecretsecret" || cfg.APIs["weather"].Fallbacks[0].Key != "fallbackkey12345" {
		t.Error("redact modified the original config")
	}
}
