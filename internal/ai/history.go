package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// DefaultEncoding is cl100k_base, close enough for GPT and Claude models
const DefaultEncoding = "cl100k_base"

// perTurnOverhead approximates role and framing tokens
const perTurnOverhead = 4

// Counter returns the token count of a string.
type Counter func(string) int

// TokenCounter returns a tiktoken counter, or a chars/4 estimate when the
// encoding cannot be loaded.
func TokenCounter() Counter {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		L_warn("ai: tiktoken unavailable, estimating tokens", "error", err)
		return EstimateTokens
	}
	var mu sync.Mutex
	return func(s string) int {
		mu.Lock()
		defer mu.Unlock()
		return len(enc.Encode(s, nil, nil))
	}
}

// EstimateTokens is the chars/4 fallback.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// History keeps recent turns per chat within a token budget.
type History struct {
	budget int
	count  Counter

	mu    sync.Mutex
	chats map[string][]Turn
}

// NewHistory creates a history. A nil counter means EstimateTokens.
func NewHistory(budget int, count Counter) *History {
	if budget <= 0 {
		budget = 3000
	}
	if count == nil {
		count = EstimateTokens
	}
	return &History{budget: budget, count: count, chats: make(map[string][]Turn)}
}

// Turns returns a copy of the chat's turns, oldest first.
func (h *History) Turns(chat string) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.chats[chat]...)
}

// Append adds turns and trims the chat to the budget.
func (h *History) Append(chat string, turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chats[chat] = h.Fit(append(h.chats[chat], turns...))
}

// Reset drops the chat's history.
func (h *History) Reset(chat string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.chats[chat])
	delete(h.chats, chat)
	return n
}

// Tokens counts turns the same way Fit does.
func (h *History) Tokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += h.count(t.Content) + perTurnOverhead
	}
	return total
}

// Fit drops the oldest turns until the rest fit the budget. The newest turn
// is always kept, and the result never starts with an assistant turn.
func (h *History) Fit(turns []Turn) []Turn {
	for len(turns) > 1 && h.Tokens(turns) > h.budget {
		turns = turns[1:]
	}
	for len(turns) > 1 && turns[0].Role == RoleAssistant {
		turns = turns[1:]
	}
	return turns
}
