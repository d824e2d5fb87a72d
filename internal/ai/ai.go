// Package ai proxies chat prompts to an LLM provider with a short per-chat
// memory, and generates images.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/upstream"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string
	Content string
}

// Provider completes a conversation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)
}

// ImageGenerator turns a prompt into image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ErrEmptyReply is returned when the provider answered with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// Options configures a Service
type Options struct {
	SystemPrompt  string
	HistoryTokens int
	MaxTokens     int
}

// Service is what the ai commands call.
type Service struct {
	provider Provider
	images   ImageGenerator
	history  *History
	opts     Options
}

// NewService wires a provider, an optional image generator and the history.
// Either may be nil when not configured; calls then fail with a
// not-configured error.
func NewService(provider Provider, images ImageGenerator, history *History, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if history == nil {
		history = NewHistory(opts.HistoryTokens, nil)
	}
	return &Service{provider: provider, images: images, history: history, opts: opts}
}

// Ask sends prompt in the context of the chat's history and records both
// sides of the exchange. A failed call leaves the history untouched.
func (s *Service) Ask(ctx context.Context, chat, prompt string) (string, error) {
	if s.provider == nil {
		return "", &upstream.Error{Service: "AI", Err: upstream.ErrNotConfigured}
	}

	turns := append(s.history.Turns(chat), Turn{Role: RoleUser, Content: prompt})
	turns = s.history.Fit(turns)

	reply, err := s.provider.Complete(ctx, s.opts.SystemPrompt, turns, s.opts.MaxTokens)
	if err != nil {
		L_warn("ai: completion failed", "provider", s.provider.Name(), "chat", chat, "error", err)
		return "", wrap(ctx, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &upstream.Error{Service: "AI", Err: upstream.ErrMalformed}
	}

	s.history.Append(chat, Turn{Role: RoleUser, Content: prompt}, Turn{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// Imagine generates an image for prompt.
func (s *Service) Imagine(ctx context.Context, prompt string) ([]byte, error) {
	if s.images == nil {
		return nil, &upstream.Error{Service: "Image generation", Err: upstream.ErrNotConfigured}
	}
	data, err := s.images.Generate(ctx, prompt)
	if err != nil {
		L_warn("ai: image generation failed", "error", err)
		e := wrap(ctx, err)
		e.Service = "Image generation"
		return nil, e
	}
	return data, nil
}

// Reset forgets the chat's history and returns how many turns were dropped.
func (s *Service) Reset(chat string) int {
	return s.history.Reset(chat)
}

// History exposes the conversation store.
func (s *Service) History() *History {
	return s.history
}

func wrap(ctx context.Context, err error) *upstream.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(upstream.ErrTimeout, err)
	}
	if errors.Is(err, ErrEmptyReply) {
		err = errors.Join(upstream.ErrMalformed, err)
	}
	return &upstream.Error{Service: "AI", Err: err}
}
