package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roelfdiedericks/wabot/internal/bus"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadFormats(t *testing.T) {
	t.Setenv("WABOT_HOME", t.TempDir())
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "wabot.json", `{"prefix":"!","owners":["+27 82 555 1234"],"commandTimeout":"30s","http":{"timeout":5}}`},
		{"yaml", "wabot.yaml", "prefix: '!'\nowners: ['+27 82 555 1234']\ncommandTimeout: 30s\nhttp:\n  timeout: 5s\n"},
		{"toml", "wabot.toml", "prefix = '!'\nowners = ['+27 82 555 1234']\ncommandTimeout = '30s'\n[http]\ntimeout = '5s'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, dir, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Prefix != "!" {
				t.Errorf("Prefix = %q, want !", cfg.Prefix)
			}
			if len(cfg.Owners) != 1 || cfg.Owners[0] != "27825551234" {
				t.Errorf("Owners = %v, want [27825551234]", cfg.Owners)
			}
			if cfg.CommandTimeout.D() != 30*time.Second {
				t.Errorf("CommandTimeout = %v, want 30s", cfg.CommandTimeout)
			}
			if cfg.HTTP.Timeout.D() != 5*time.Second {
				t.Errorf("HTTP.Timeout = %v, want 5s", cfg.HTTP.Timeout)
			}
			// defaults fill the rest
			if cfg.Mode != ModePublic || cfg.LogRetention != 500 || cfg.HTTP.MaxDownloadBytes != 64<<20 {
				t.Errorf("defaults not merged: mode=%q retention=%d max=%d", cfg.Mode, cfg.LogRetention, cfg.HTTP.MaxDownloadBytes)
			}
			if _, ok := cfg.APIs[APIWeather]; !ok {
				t.Error("default APIs not merged")
			}
		})
	}
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	t.Setenv("WABOT_HOME", t.TempDir())
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "wabot.json", `{"logRetention":0,"whatsapp":{"maxReconnectAttempts":0,"autoOnline":false},"http":{"burst":0}}`},
		{"yaml", "wabot.yaml", "logRetention: 0\nwhatsapp:\n  maxReconnectAttempts: 0\n  autoOnline: false\nhttp:\n  burst: 0\n"},
		{"toml", "wabot.toml", "logRetention = 0\n[whatsapp]\nmaxReconnectAttempts = 0\nautoOnline = false\n[http]\nburst = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, dir, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.LogRetention != 0 {
				t.Errorf("LogRetention = %d, want 0", cfg.LogRetention)
			}
			if cfg.WhatsApp.MaxReconnectAttempts != 0 {
				t.Errorf("MaxReconnectAttempts = %d, want 0 (unlimited)", cfg.WhatsApp.MaxReconnectAttempts)
			}
			if cfg.HTTP.Burst != 0 {
				t.Errorf("Burst = %d, want 0", cfg.HTTP.Burst)
			}
			if cfg.HTTP.RatePerSecond != 5 {
				t.Errorf("RatePerSecond = %v, want default 5", cfg.HTTP.RatePerSecond)
			}
		})
	}
}

func TestLoadEndpointInheritsBuiltin(t *testing.T) {
	t.Setenv("WABOT_HOME", t.TempDir())
	p := writeFile(t, t.TempDir(), "wabot.json",
		`{"apis":{"weather":{"key":"ow-file"},"joke":{"url":"https://jokes.test/random","extract":".joke"}}}`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	weather := cfg.APIs[APIWeather]
	if weather.Key != "ow-file" || weather.URL != DefaultAPIs()[APIWeather].URL || weather.Extract == "" {
		t.Errorf("weather = %+v, want built-in endpoint with file key", weather)
	}
	if joke := cfg.APIs[APIJoke]; joke.URL != "https://jokes.test/random" || joke.Extract != ".joke" || len(joke.Fallbacks) != 0 {
		t.Errorf("joke = %+v, want the file entry untouched", joke)
	}
	if _, ok := cfg.APIs[APIWiki]; !ok {
		t.Error("entries absent from the file should keep their defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("WABOT_HOME", home)
	t.Setenv("WABOT_PREFIX", "#")
	t.Setenv("WABOT_OWNERS", "27825551234, 15551234567")
	t.Setenv("WABOT_MODE", "private")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENWEATHER_API_KEY", "ow-test")

	p := writeFile(t, t.TempDir(), "wabot.json", `{"prefix":"!"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "#" || cfg.Mode != ModePrivate {
		t.Errorf("env not applied: prefix=%q mode=%q", cfg.Prefix, cfg.Mode)
	}
	if len(cfg.Owners) != 2 {
		t.Errorf("Owners = %v", cfg.Owners)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.APIs[APIWeather].Key != "ow-test" {
		t.Errorf("weather key = %q", cfg.APIs[APIWeather].Key)
	}
	if cfg.DataDir != home {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, home)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("WABOT_HOME", t.TempDir())
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad mode", `{"mode":"secret"}`, "mode must be"},
		{"bad owner", `{"owners":["abc"]}`, "not a phone number"},
		{"bad provider", `{"ai":{"provider":"llama"}}`, "ai.provider"},
		{"endpoint without url", `{"apis":{"custom":{"extract":"."}}}`, "apis.custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, "wabot.json", tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct{ in, want string }{
		{"+27 82-555-1234", "27825551234"},
		{"(555) 123 4567", "5551234567"},
		{"123", ""},
		{"27x825551234", ""},
	}
	for _, tt := range tests {
		if got := NormalizeNumber(tt.in); got != tt.want {
			t.Errorf("NormalizeNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	t.Setenv("WABOT_HOME", t.TempDir())
	p := writeFile(t, t.TempDir(), "wabot.json", `{"prefix":"!"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}

	events := bus.New()
	reloaded := make(chan *Config, 1)
	events.Subscribe(bus.TopicConfigReloaded, func(e bus.Event) {
		reloaded <- e.Data.(*Config)
	})

	holder := NewHolder(cfg)
	w, err := NewWatcher(p, holder, events)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(p, []byte(`{"prefix":"$"}`), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-reloaded:
		if got.Prefix != "$" || holder.Get().Prefix != "$" {
			t.Errorf("prefix not reloaded: event=%q holder=%q", got.Prefix, holder.Get().Prefix)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload event")
	}
}
