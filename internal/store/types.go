package store

import "time"

// Moderation actions
const (
	ActionDelete = "delete"
	ActionWarn   = "warn"
	ActionKick   = "kick"
)

// Anti-call actions
const (
	CallReject = "reject"
	CallBlock  = "block"
)

// DefaultLimit is the warn count that triggers a kick.
const DefaultLimit = 3

// FeatureConfig is the state of one moderation feature in one chat.
type FeatureConfig struct {
	Enabled bool   `json:"enabled"`
	Action  string `json:"action,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// EffectiveLimit returns Limit or DefaultLimit when unset.
func (f FeatureConfig) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// EffectiveAction returns Action or ActionDelete when unset.
func (f FeatureConfig) EffectiveAction() string {
	if f.Action == "" {
		return ActionDelete
	}
	return f.Action
}

// BadwordConfig adds the chat's word list to a FeatureConfig.
type BadwordConfig struct {
	FeatureConfig
	Words []string `json:"words,omitempty"`
}

// GreetingConfig controls welcome/goodbye messages.
type GreetingConfig struct {
	Enabled bool   `json:"enabled"`
	Text    string `json:"text,omitempty"`
}

// ChatSettings is everything persisted per chat.
type ChatSettings struct {
	AntiLink    FeatureConfig  `json:"antilink"`
	AntiTag     FeatureConfig  `json:"antitag"`
	AntiBadword BadwordConfig  `json:"antibadword"`
	Welcome     GreetingConfig `json:"welcome"`
	Goodbye     GreetingConfig `json:"goodbye"`
}

// AntiCall is the bot-wide anti-call setting.
type AntiCall struct {
	Enabled bool   `json:"enabled"`
	Action  string `json:"action,omitempty"`
}

// BotSettings are runtime overrides set from chat (.mode, .setprefix).
type BotSettings struct {
	Mode   string `json:"mode,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// LogEntry is one call-log or tag-log record.
type LogEntry struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Chat      string    `json:"chat,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// Schedule kinds
const (
	KindUnmute = "unmute"
)

// Schedule is a persisted one-shot action.
type Schedule struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	Chat string    `json:"chat"`
	At   time.Time `json:"at"`
}
