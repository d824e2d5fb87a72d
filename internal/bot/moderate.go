package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

var reasons = map[string]string{
	moderation.FeatureAntiLink:    "links are not allowed here",
	moderation.FeatureAntiTag:     "mass tagging is not allowed here",
	moderation.FeatureAntiBadword: "watch your language",
}

// moderate enforces the chat's moderation settings on msg. It returns true
// when the message was acted on and must not be dispatched.
func (r *Router) moderate(ctx context.Context, sock types.Socket, msg types.MessageInfo, text string) bool {
	if !msg.IsGroup || msg.FromMe || types.SameUser(msg.Sender, sock.OwnJID()) {
		return false
	}
	settings, err := r.svc.Store.Chat(msg.Chat)
	if err != nil {
		L_error("bot: read chat settings", "chat", msg.Chat, "error", err)
		return false
	}
	if !settings.AntiLink.Enabled && !settings.AntiTag.Enabled && !settings.AntiBadword.Enabled {
		return false
	}
	if r.svc.IsPrivileged(msg.Sender) {
		return false
	}

	g, err := sock.GroupInfo(ctx, msg.Chat)
	if err != nil {
		L_warn("bot: group info for moderation failed", "chat", msg.Chat, "error", err)
		return false
	}
	if g.IsAdmin(msg.Sender) {
		return false
	}

	hit, ok := moderation.Detect(settings, text, msg.Mentions, len(g.Participants))
	if !ok {
		return false
	}
	L_info("bot: moderation hit", "chat", msg.Chat, "sender", msg.Sender, "feature", hit.Feature, "detail", hit.Detail)

	if hit.Feature == moderation.FeatureAntiTag {
		entry := store.LogEntry{From: types.Normalize(msg.Sender), Chat: msg.Chat, Timestamp: r.svc.Scheduler.Now().UTC(), Action: hit.Config.EffectiveAction()}
		if _, err := r.svc.Store.TagLog.Append(entry); err != nil {
			L_error("bot: append tag log", "error", err)
		}
	}

	if !g.IsAdmin(sock.OwnJID()) {
		r.needAdmin(ctx, sock, msg.Chat, hit.Feature)
		return false
	}

	v := r.svc.Counters.Apply(hit.Feature, msg.Chat, msg.Sender, hit.Config)
	if err := r.enforce(ctx, sock, msg, hit.Feature, v); err != nil {
		if errors.Is(err, types.ErrForbidden) {
			r.needAdmin(ctx, sock, msg.Chat, hit.Feature)
		} else {
			L_error("bot: moderation action failed", "chat", msg.Chat, "feature", hit.Feature, "error", err)
		}
	}
	return true
}

func (r *Router) enforce(ctx context.Context, sock types.Socket, msg types.MessageInfo, feature string, v moderation.Verdict) error {
	if v.Delete {
		if err := sock.Delete(ctx, msg.Key()); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
	}

	user := types.Normalize(msg.Sender)
	tag := types.Mention(user)
	switch {
	case v.Kick:
		if err := sock.UpdateParticipants(ctx, msg.Chat, []string{user}, types.ParticipantRemove); err != nil {
			return fmt.Errorf("kick: %w", err)
		}
		text := fmt.Sprintf("%s was removed: %s.", tag, reasons[feature])
		if v.Count > 0 {
			text = fmt.Sprintf("%s was removed after %d/%d warnings: %s.", tag, v.Count, v.Limit, reasons[feature])
		}
		_, err := sock.Send(ctx, msg.Chat, types.Outgoing{Text: text, Mentions: []string{user}})
		return err
	case v.Warn:
		text := fmt.Sprintf("%s, %s. Warning %d/%d.", tag, reasons[feature], v.Count, v.Limit)
		_, err := sock.Send(ctx, msg.Chat, types.Outgoing{Text: text, Mentions: []string{user}})
		return err
	}
	return nil
}

// needAdmin tells a chat once per feature that enforcement needs admin rights.
func (r *Router) needAdmin(ctx context.Context, sock types.Socket, chat, feature string) {
	key := chat + "|" + feature
	r.mu.Lock()
	done := r.notified[key]
	r.notified[key] = true
	r.mu.Unlock()
	if done {
		return
	}
	L_warn("bot: cannot enforce moderation, not an admin", "chat", chat, "feature", feature)
	text := fmt.Sprintf("%s is on, but I need to be a group admin to enforce it.", feature)
	if _, err := sock.Send(ctx, chat, types.Outgoing{Text: text}); err != nil {
		L_warn("bot: send admin notice failed", "chat", chat, "error", err)
	}
}
