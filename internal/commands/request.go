package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// Request is one command invocation.
type Request struct {
	Socket   types.Socket
	Event    types.Event
	Msg      types.MessageInfo
	Command  *Command
	Name     string // as typed, may be an alias
	Query    string // everything after the name, trimmed
	Args     []string
	Prefix   string
	Services *Services

	group *types.GroupInfo
}

// Arg returns the i-th argument or "".
func (r *Request) Arg(i int) string {
	if i < len(r.Args) {
		return r.Args[i]
	}
	return ""
}

// Usage returns the UsageError for this command.
func (r *Request) Usage() error {
	return &UsageError{Command: r.Command.Name, Usage: r.Command.Usage}
}

// UsageHint is Usage with an extra line, e.g. an example.
func (r *Request) UsageHint(hint string) error {
	return &UsageError{Command: r.Command.Name, Usage: r.Command.Usage, Hint: hint}
}

// Reply sends text quoting the command message.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.Send(ctx, types.Outgoing{Text: text})
}

// Replyf is Reply with formatting.
func (r *Request) Replyf(ctx context.Context, format string, args ...any) error {
	return r.Reply(ctx, fmt.Sprintf(format, args...))
}

// ReplyMentions sends text that tags the given JIDs.
func (r *Request) ReplyMentions(ctx context.Context, text string, mentions []string) error {
	return r.Send(ctx, types.Outgoing{Text: text, Mentions: mentions})
}

// ReplyMedia sends an attachment quoting the command message.
func (r *Request) ReplyMedia(ctx context.Context, m *types.OutgoingMedia) error {
	return r.Send(ctx, types.Outgoing{Media: m})
}

// Send sends out to the command's chat, quoting the command message.
func (r *Request) Send(ctx context.Context, out types.Outgoing) error {
	if out.Quote == nil {
		msg := r.Msg
		out.Quote = &msg
	}
	_, err := r.Socket.Send(ctx, r.Msg.Chat, out)
	return err
}

// React puts an emoji on the command message.
func (r *Request) React(ctx context.Context, emoji string) error {
	return r.Socket.React(ctx, r.Msg.Key(), emoji)
}

// Group returns the chat's metadata, fetched once per request.
func (r *Request) Group(ctx context.Context) (*types.GroupInfo, error) {
	if !r.Msg.IsGroup {
		return nil, &PermissionError{Need: Group}
	}
	if r.group != nil {
		return r.group, nil
	}
	g, err := r.Socket.GroupInfo(ctx, r.Msg.Chat)
	if err != nil {
		return nil, fmt.Errorf("group info: %w", err)
	}
	r.group = g
	return g, nil
}

// IsPrivileged reports whether the sender is an owner or sudo user.
func (r *Request) IsPrivileged() bool {
	return r.Msg.FromMe || r.Services.IsPrivileged(r.Msg.Sender)
}

// Targets resolves who a command is about: mentioned users first, then
// the sender of the quoted message, then phone numbers in the arguments.
// The bot itself is never a target.
func (r *Request) Targets() []string {
	own := r.Socket.OwnJID()
	var out []string
	add := func(jid string) {
		if jid == "" || types.SameUser(jid, own) {
			return
		}
		if !slices.ContainsFunc(out, func(o string) bool { return types.SameUser(o, jid) }) {
			out = append(out, types.Normalize(jid))
		}
	}

	for _, m := range r.Msg.Mentions {
		add(m)
	}
	if len(out) > 0 {
		return out
	}
	if q := r.Msg.Quoted; q != nil && q.Sender != "" {
		add(q.Sender)
		return out
	}
	for _, a := range r.Args {
		if strings.HasPrefix(a, "@") {
			a = a[1:]
		}
		if n := config.NormalizeNumber(a); n != "" {
			add(types.UserJID(n))
		}
	}
	return out
}

// Media returns the media the command should work on: the command
// message's own attachment, else the quoted message's.
func (r *Request) Media() *types.MediaRef {
	if mm, ok := r.Event.(*types.MediaMessage); ok {
		return &mm.Media
	}
	if q := r.Msg.Quoted; q != nil && q.Media != nil {
		return q.Media
	}
	return nil
}

// DownloadMedia downloads Media(), failing with ErrNoMedia when there is none
// or it is not one of kinds (any kind when kinds is empty).
func (r *Request) DownloadMedia(ctx context.Context, kinds ...types.MediaKind) ([]byte, *types.MediaRef, error) {
	ref := r.Media()
	if ref == nil || (len(kinds) > 0 && !slices.Contains(kinds, ref.Kind)) {
		return nil, nil, ErrNoMedia
	}
	data, err := r.Socket.Download(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("download media: %w", err)
	}
	return data, ref, nil
}
