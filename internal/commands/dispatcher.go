package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Dispatcher turns command messages into handler calls.
type Dispatcher struct {
	svc *Services
}

// NewDispatcher creates a dispatcher over svc.Commands.
func NewDispatcher(svc *Services) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Handle runs the command carried by ev, if any. It reports whether ev was
// addressed to the bot (a prefixed message), whether or not a handler ran.
func (d *Dispatcher) Handle(ctx context.Context, sock types.Socket, ev types.Event) bool {
	msg, text, ok := types.Body(ev)
	if !ok {
		return false
	}
	prefix := d.svc.Prefix()
	name, query, ok := Parse(text, prefix)
	if !ok {
		return false
	}

	if !msg.FromMe && d.svc.IsBanned(msg.Sender) {
		L_debug("commands: ignoring banned sender", "sender", msg.Sender, "command", name)
		return true
	}
	if d.svc.Mode() == config.ModePrivate && !msg.FromMe && !d.svc.IsPrivileged(msg.Sender) {
		L_trace("commands: private mode, ignoring", "sender", msg.Sender, "command", name)
		return true
	}

	cmd := d.svc.Commands.Get(name)
	if cmd == nil {
		if d.svc.Config.Get().ReplyUnknown {
			d.reply(ctx, sock, msg, fmt.Sprintf("Unknown command %s%s. Send %shelp for the list.", prefix, name, prefix))
		}
		return true
	}

	req := &Request{
		Socket:   sock,
		Event:    ev,
		Msg:      msg,
		Command:  cmd,
		Name:     name,
		Query:    query,
		Args:     strings.Fields(query),
		Prefix:   prefix,
		Services: d.svc,
	}
	d.run(ctx, req)
	return true
}

func (d *Dispatcher) run(ctx context.Context, req *Request) {
	cmd := req.Command
	ctx, cancel := context.WithTimeout(ctx, d.svc.Config.Get().CommandTimeout.D())
	defer cancel()

	start := time.Now()
	L_info("commands: running", "command", cmd.Name, "chat", req.Msg.Chat, "sender", req.Msg.Sender)

	err := d.invoke(ctx, req)

	m := d.svc.Metrics
	if m != nil {
		m.AddCounter(metrics.TopicCommand, cmd.Name, 1)
		m.RecordDuration(metrics.TopicCommand, cmd.Name, time.Since(start))
	}
	if err == nil {
		if m != nil {
			m.RecordSuccess(metrics.TopicCommand, cmd.Name)
		}
		L_debug("commands: done", "command", cmd.Name, "elapsed", time.Since(start))
		return
	}

	text, expected := describe(err, req.Prefix)
	if m != nil {
		m.RecordFailure(metrics.TopicCommand, cmd.Name, failureReason(err, expected))
	}
	if expected {
		L_debug("commands: handler refused", "command", cmd.Name, "error", err)
	} else {
		L_error("commands: handler failed", "command", cmd.Name, "chat", req.Msg.Chat, "error", err)
	}
	// the reply gets its own deadline in case the handler used up ctx
	replyCtx, cancelReply := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancelReply()
	d.reply(replyCtx, req.Socket, req.Msg, text)
}

// invoke checks permissions and calls the handler, turning a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			L_error("commands: handler panic", "command", req.Command.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in %s: %v", req.Command.Name, r)
		}
	}()

	if err := d.authorize(ctx, req); err != nil {
		return err
	}
	return req.Command.Handler(ctx, req)
}

func (d *Dispatcher) authorize(ctx context.Context, req *Request) error {
	cmd := req.Command
	privileged := req.IsPrivileged()

	switch cmd.Permission {
	case Owner:
		if !privileged {
			return &PermissionError{Need: Owner}
		}
	case Group:
		if !req.Msg.IsGroup {
			return &PermissionError{Need: Group}
		}
	case Admin:
		if !req.Msg.IsGroup {
			return &PermissionError{Need: Group}
		}
		if !privileged {
			g, err := req.Group(ctx)
			if err != nil {
				return err
			}
			if !g.IsAdmin(req.Msg.Sender) {
				return &PermissionError{Need: Admin}
			}
		}
	}

	if cmd.BotAdmin {
		if !req.Msg.IsGroup {
			return &PermissionError{Need: Group}
		}
		g, err := req.Group(ctx)
		if err != nil {
			return err
		}
		if !g.IsAdmin(req.Socket.OwnJID()) {
			return ErrBotNotAdmin
		}
	}
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, sock types.Socket, msg types.MessageInfo, text string) {
	if _, err := sock.Send(ctx, msg.Chat, types.Outgoing{Text: text, Quote: &msg}); err != nil {
		L_warn("commands: failed to send reply", "chat", msg.Chat, "error", err)
	}
}

func failureReason(err error, expected bool) string {
	var usage *UsageError
	var perm *PermissionError
	switch {
	case errors.As(err, &usage):
		return "usage"
	case errors.As(err, &perm):
		return "permission"
	case !expected:
		return "error"
	}
	return "refused"
}
