// Package bot routes inbound WhatsApp events: moderation runs first on
// group messages, then command dispatch; calls and membership changes have
// their own paths.
package bot

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/handlers/group"
	"github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Router is the single entry point for inbound events. Safe for concurrent use.
type Router struct {
	svc        *commands.Services
	dispatcher *commands.Dispatcher
	calls      *callGuard

	mu       sync.Mutex
	notified map[string]bool // chat|feature pairs told the bot needs admin
}

// New creates a router over svc.
func New(svc *commands.Services) *Router {
	return &Router{
		svc:        svc,
		dispatcher: commands.NewDispatcher(svc),
		calls:      newCallGuard(svc.Scheduler.Now),
		notified:   make(map[string]bool),
	}
}

// Handle processes one event. It never panics.
func (r *Router) Handle(ctx context.Context, sock types.Socket, ev types.Event) {
	defer func() {
		if p := recover(); p != nil {
			L_error("bot: event handler panic", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	switch e := ev.(type) {
	case *types.CallOffer:
		r.handleCall(ctx, sock, e)
	case *types.GroupParticipants:
		r.handleParticipants(ctx, sock, e)
	case *types.ReactionEvent:
		L_trace("bot: reaction", "chat", e.Chat, "from", e.Sender, "emoji", e.Emoji)
	case *types.TextMessage, *types.MediaMessage:
		msg, text, _ := types.Body(ev)
		if r.moderate(ctx, sock, msg, text) {
			return
		}
		r.dispatcher.Handle(ctx, sock, ev)
	default:
		L_trace("bot: unhandled event", "type", ev)
	}
}

func (r *Router) handleParticipants(ctx context.Context, sock types.Socket, e *types.GroupParticipants) {
	for _, u := range e.Left {
		r.svc.Counters.ResetUser(e.Chat, u)
	}
	if len(e.Joined) == 0 && len(e.Left) == 0 {
		return
	}

	g, err := sock.GroupInfo(ctx, e.Chat)
	if err != nil {
		L_warn("bot: group info for greeting failed", "chat", e.Chat, "error", err)
		return
	}
	greet := func(users []string, joined bool) {
		for _, u := range users {
			if types.SameUser(u, sock.OwnJID()) {
				continue
			}
			text, err := group.Greeting(r.svc, g, u, joined)
			if err != nil {
				L_warn("bot: greeting failed", "chat", e.Chat, "error", err)
				return
			}
			if text == "" {
				return
			}
			if _, err := sock.Send(ctx, e.Chat, types.Outgoing{Text: text, Mentions: []string{u}}); err != nil {
				L_warn("bot: send greeting failed", "chat", e.Chat, "error", err)
			}
		}
	}
	greet(e.Joined, true)
	greet(e.Left, false)
}
