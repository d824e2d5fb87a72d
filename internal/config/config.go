// Package config loads the wabot settings file (json, yaml or toml), applies
// defaults and environment overrides, and validates the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/wabot/internal/paths"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

// Bot modes
const (
	ModePublic  = "public"
	ModePrivate = "private"
)

// Config represents the wabot configuration
type Config struct {
	Prefix         string   `json:"prefix" yaml:"prefix"`
	Owners         []string `json:"owners" yaml:"owners"` // phone numbers, digits only
	Mode           string   `json:"mode" yaml:"mode"`
	BotName        string   `json:"botName" yaml:"botName"`
	ReplyUnknown   bool     `json:"replyUnknown" yaml:"replyUnknown"`
	CommandTimeout Duration `json:"commandTimeout" yaml:"commandTimeout"`
	DataDir        string   `json:"dataDir" yaml:"dataDir"`
	LogLevel       string   `json:"logLevel" yaml:"logLevel"`
	LogRetention   int      `json:"logRetention" yaml:"logRetention"`
	WelcomeText    string   `json:"welcomeText" yaml:"welcomeText"`
	GoodbyeText    string   `json:"goodbyeText" yaml:"goodbyeText"`

	WhatsApp WhatsAppConfig               `json:"whatsapp" yaml:"whatsapp"`
	HTTP     HTTPConfig                   `json:"http" yaml:"http"`
	Media    MediaConfig                  `json:"media" yaml:"media"`
	AI       AIConfig                     `json:"ai" yaml:"ai"`
	APIs     map[string]upstream.Endpoint `json:"apis" yaml:"apis"`
	AntiCall AntiCallConfig               `json:"anticall" yaml:"anticall"`

	path string
}

// WhatsAppConfig controls the connection manager
type WhatsAppConfig struct {
	MaxReconnectAttempts int  `json:"maxReconnectAttempts" yaml:"maxReconnectAttempts"` // 0 = unlimited
	AutoOnline           bool `json:"autoOnline" yaml:"autoOnline"`
}

// HTTPConfig controls the shared upstream client
type HTTPConfig struct {
	Timeout          Duration `json:"timeout" yaml:"timeout"`
	MaxDownloadBytes int64    `json:"maxDownloadBytes" yaml:"maxDownloadBytes"`
	RatePerSecond    float64  `json:"ratePerSecond" yaml:"ratePerSecond"`
	Burst            int      `json:"burst" yaml:"burst"`
	UserAgent        string   `json:"userAgent" yaml:"userAgent"`
}

// MediaConfig points at the local conversion tools
type MediaConfig struct {
	FFmpeg            string   `json:"ffmpeg" yaml:"ffmpeg"`
	CWebP             string   `json:"cwebp" yaml:"cwebp"`
	TempTTL           Duration `json:"tempTTL" yaml:"tempTTL"`
	MaxStickerSeconds int      `json:"maxStickerSeconds" yaml:"maxStickerSeconds"`
}

// AIConfig selects and tunes the chat provider
type AIConfig struct {
	Provider      string `json:"provider" yaml:"provider"` // openai | anthropic
	BaseURL       string `json:"baseUrl" yaml:"baseUrl"`
	APIKey        string `json:"apiKey" yaml:"apiKey"`
	Model         string `json:"model" yaml:"model"`
	ImageModel    string `json:"imageModel" yaml:"imageModel"`
	ImageAPIKey   string `json:"imageApiKey" yaml:"imageApiKey"` // OpenAI key for .imagine when provider is anthropic
	SystemPrompt  string `json:"systemPrompt" yaml:"systemPrompt"`
	HistoryTokens int    `json:"historyTokens" yaml:"historyTokens"`
	MaxTokens     int    `json:"maxTokens" yaml:"maxTokens"`
}

// AntiCallConfig holds the anti-call notice text
type AntiCallConfig struct {
	Message string `json:"message" yaml:"message"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Prefix:         ".",
		Mode:           ModePublic,
		BotName:        "wabot",
		CommandTimeout: Duration(60 * time.Second),
		LogLevel:       "info",
		LogRetention:   500,
		WelcomeText:    "Welcome @user to {group}!",
		GoodbyeText:    "Goodbye @user.",
		WhatsApp: WhatsAppConfig{
			MaxReconnectAttempts: 10,
		},
		HTTP: HTTPConfig{
			Timeout:          Duration(20 * time.Second),
			MaxDownloadBytes: 64 << 20,
			RatePerSecond:    5,
			Burst:            10,
			UserAgent:        "wabot/1.0",
		},
		Media: MediaConfig{
			FFmpeg:            "ffmpeg",
			CWebP:             "cwebp",
			TempTTL:           Duration(10 * time.Minute),
			MaxStickerSeconds: 8,
		},
		AI: AIConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			ImageModel:    "dall-e-3",
			SystemPrompt:  "You are a helpful assistant in a WhatsApp chat. Keep answers short.",
			HistoryTokens: 3000,
			MaxTokens:     1024,
		},
		APIs: DefaultAPIs(),
		AntiCall: AntiCallConfig{
			Message: "Calls are not accepted by this bot. Please send a text message instead.",
		},
	}
}

// Load reads the settings file at path (or the one found by
// paths.SettingsPath when path is empty) over the defaults and applies
// environment overrides. A missing settings file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := paths.SettingsPath()
		if err != nil {
			return nil, err
		}
		path = found
	}

	// decoding over the defaults keeps explicit zeros and false values
	cfg := Defaults()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.inheritEndpoints(); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if cfg.DataDir == "" {
		dir, err := paths.BaseDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	dir, err := paths.ExpandTilde(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the settings file the config was loaded from ("" if none).
func (c *Config) Path() string {
	return c.path
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported settings format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// inheritEndpoints completes api entries that name a built-in endpoint but
// give no url, so a settings file can supply just a key.
func (c *Config) inheritEndpoints() error {
	if c.APIs == nil {
		c.APIs = make(map[string]upstream.Endpoint)
	}
	builtin := DefaultAPIs()
	for name, ep := range c.APIs {
		def, ok := builtin[name]
		if !ok || ep.URL != "" {
			continue
		}
		if err := mergo.Merge(&ep, def); err != nil {
			return fmt.Errorf("apis.%s: %w", name, err)
		}
		c.APIs[name] = ep
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WABOT_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("WABOT_OWNERS"); v != "" {
		c.Owners = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Owners = append(c.Owners, o)
			}
		}
	}
	if v := os.Getenv("WABOT_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("WABOT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(paths.HomeEnv); v != "" {
		c.DataDir = v
	}

	switch c.AI.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.AI.APIKey = v
		}
		if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.AI.ImageAPIKey == "" {
			c.AI.ImageAPIKey = v
		}
	default:
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.AI.APIKey = v
		}
	}

	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		ep := c.APIs["weather"]
		ep.Key = v
		c.APIs["weather"] = ep
	}
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Prefix) == "" {
		errs = append(errs, errors.New("prefix must not be empty"))
	}
	if c.Mode != ModePublic && c.Mode != ModePrivate {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModePublic, ModePrivate, c.Mode))
	}
	for i, o := range c.Owners {
		n := NormalizeNumber(o)
		if n == "" {
			errs = append(errs, fmt.Errorf("owners[%d]: %q is not a phone number", i, o))
			continue
		}
		c.Owners[i] = n
	}
	if c.AI.Provider != "openai" && c.AI.Provider != "anthropic" {
		errs = append(errs, fmt.Errorf("ai.provider must be openai or anthropic, got %q", c.AI.Provider))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, errors.New("commandTimeout must be positive"))
	}
	for name, ep := range c.APIs {
		if ep.URL == "" {
			errs = append(errs, fmt.Errorf("apis.%s: url is required", name))
		}
	}
	return errors.Join(errs...)
}

// NormalizeNumber strips '+', spaces, dashes and parentheses from a phone
// number. Returns "" if anything but digits remains or the length is implausible.
func NormalizeNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	n := b.String()
	if len(n) < 7 || len(n) > 15 {
		return ""
	}
	return n
}

// Holder publishes the active config to concurrent readers and lets the
// watcher swap it on reload.
type Holder struct {
	v atomic.Pointer[Config]
}

// NewHolder wraps cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.v.Store(cfg)
	return h
}

// Get returns the active config.
func (h *Holder) Get() *Config {
	return h.v.Load()
}

// Set replaces the active config.
func (h *Holder) Set(cfg *Config) {
	h.v.Store(cfg)
}
