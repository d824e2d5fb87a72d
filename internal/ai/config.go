package ai

import (
	"net/http"

	"github.com/roelfdiedericks/wabot/internal/config"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// FromConfig builds the Service described by the ai settings. Without a key
// the matching half (chat or images) stays unconfigured.
func FromConfig(cfg config.AIConfig, hc *http.Client) *Service {
	var provider Provider
	var images ImageGenerator

	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey != "" {
			provider = NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, hc)
		}
		if cfg.ImageAPIKey != "" {
			images = NewOpenAIProvider(cfg.ImageAPIKey, "", "", cfg.ImageModel, hc)
		}
	default:
		if cfg.APIKey != "" || cfg.BaseURL != "" {
			p := NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.ImageModel, hc)
			provider = p
			if cfg.BaseURL == "" {
				images = p
			}
		}
		if images == nil && cfg.ImageAPIKey != "" {
			images = NewOpenAIProvider(cfg.ImageAPIKey, "", "", cfg.ImageModel, hc)
		}
	}

	L_info("ai: configured", "provider", cfg.Provider, "chat", provider != nil, "images", images != nil)
	return NewService(provider, images, NewHistory(cfg.HistoryTokens, TokenCounter()), Options{
		SystemPrompt:  cfg.SystemPrompt,
		HistoryTokens: cfg.HistoryTokens,
		MaxTokens:     cfg.MaxTokens,
	})
}
