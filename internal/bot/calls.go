package bot

import (
	"context"
	"sync"
	"time"

	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// callDedupeWindow is how long a call ID is remembered; WhatsApp may
// deliver the same offer more than once.
const callDedupeWindow = 30 * time.Second

// callGuard remembers recently handled call IDs.
type callGuard struct {
	now  func() time.Time
	mu   sync.Mutex
	seen map[string]time.Time
}

func newCallGuard(now func() time.Time) *callGuard {
	return &callGuard{now: now, seen: make(map[string]time.Time)}
}

// first reports whether id has not been seen within the window, and
// records it.
func (g *callGuard) first(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, t := range g.seen {
		if now.Sub(t) >= callDedupeWindow {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[id]; ok {
		return false
	}
	g.seen[id] = now
	return true
}

func (r *Router) handleCall(ctx context.Context, sock types.Socket, c *types.CallOffer) {
	ac, err := r.svc.Store.AntiCall()
	if err != nil {
		L_error("bot: read anticall", "error", err)
		return
	}
	if !ac.Enabled {
		return
	}
	if !r.calls.first(c.CallID) {
		L_debug("bot: duplicate call offer", "callID", c.CallID)
		return
	}

	caller := types.Normalize(c.From)
	L_info("bot: rejecting call", "from", caller, "video", c.Video, "action", ac.Action)

	if err := sock.RejectCall(ctx, c.From, c.CallID); err != nil {
		L_warn("bot: reject call failed", "from", caller, "error", err)
	}
	if msg := r.svc.Config.Get().AntiCall.Message; msg != "" {
		if _, err := sock.Send(ctx, caller, types.Outgoing{Text: msg}); err != nil {
			L_warn("bot: call notice failed", "from", caller, "error", err)
		}
	}

	action := store.CallReject
	if ac.Action == store.CallBlock && !r.svc.IsPrivileged(caller) {
		if err := sock.UpdateBlockStatus(ctx, caller, true); err != nil {
			L_warn("bot: block caller failed", "from", caller, "error", err)
		} else {
			action = store.CallBlock
		}
	}

	ts := c.Timestamp
	if ts.IsZero() {
		ts = r.svc.Scheduler.Now()
	}
	if _, err := r.svc.Store.CallLog.Append(store.LogEntry{ID: c.CallID, From: caller, Timestamp: ts.UTC(), Action: action}); err != nil {
		L_error("bot: append call log", "error", err)
	}
}
