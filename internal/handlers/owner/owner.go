// Package owner holds the bot owner's commands: ban lists, sudo users and
// runtime settings.
package owner

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// maxPrefixLen is the longest prefix .setprefix accepts, in runes.
const maxPrefixLen = 3

// Register installs the owner commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "ban", Description: "Make the bot ignore a user", Usage: "@user|reply|number", Handler: handleBan},
		{Name: "unban", Description: "Lift a ban", Usage: "@user|reply|number", Handler: handleUnban},
		{Name: "banlist", Description: "List banned users", Handler: listHandler("Banned users", func(s *store.Store) *store.JIDList { return s.Banned })},
		{Name: "sudo", Description: "Manage users with owner rights", Usage: "add|del|list [@user]", Handler: handleSudo},
		{Name: "mode", Description: "Let everyone use the bot, or only owners", Usage: "public|private", Handler: handleMode},
		{Name: "setprefix", Description: "Change the command prefix", Usage: "<prefix>", Handler: handleSetPrefix},
		{Name: "cleartmp", Description: "Delete temporary media files", Handler: handleClearTmp},
	} {
		c.Category = commands.CategoryOwner
		c.Permission = commands.Owner
		m.Register(c)
	}
}

func handleBan(ctx context.Context, req *commands.Request) error {
	targets := req.Targets()
	if len(targets) == 0 {
		return req.Usage()
	}
	var added []string
	for _, t := range targets {
		if req.Services.IsOwner(t) {
			return commands.Fail("The bot owner can't be banned.")
		}
		ok, err := req.Services.Store.Banned.Add(t)
		if err != nil {
			return fmt.Errorf("save ban list: %w", err)
		}
		if ok {
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return req.Reply(ctx, "Already banned.")
	}
	return req.ReplyMentions(ctx, "Banned "+mentionList(added)+". The bot will ignore them.", added)
}

func handleUnban(ctx context.Context, req *commands.Request) error {
	targets := req.Targets()
	if len(targets) == 0 {
		return req.Usage()
	}
	var removed []string
	for _, t := range targets {
		ok, err := req.Services.Store.Banned.Remove(t)
		if err != nil {
			return fmt.Errorf("save ban list: %w", err)
		}
		if ok {
			removed = append(removed, t)
		}
	}
	if len(removed) == 0 {
		return req.Reply(ctx, "Nobody to unban.")
	}
	return req.ReplyMentions(ctx, "Unbanned "+mentionList(removed)+".", removed)
}

func listHandler(title string, list func(*store.Store) *store.JIDList) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		return replyList(ctx, req, title, list(req.Services.Store))
	}
}

func replyList(ctx context.Context, req *commands.Request, title string, l *store.JIDList) error {
	jids, err := l.List()
	if err != nil {
		return fmt.Errorf("read %s: %w", strings.ToLower(title), err)
	}
	if len(jids) == 0 {
		return req.Replyf(ctx, "%s: none.", title)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d):", title, len(jids))
	for i, j := range jids {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, types.Mention(j))
	}
	return req.ReplyMentions(ctx, sb.String(), jids)
}

func handleSudo(ctx context.Context, req *commands.Request) error {
	sudo := req.Services.Store.Sudo
	sub := strings.ToLower(req.Arg(0))
	if sub == "list" {
		return replyList(ctx, req, "Sudo users", sudo)
	}
	if sub != "add" && sub != "del" {
		return req.Usage()
	}

	targets := req.Targets()
	if len(targets) == 0 {
		return req.Usage()
	}
	target := targets[0]
	tag := types.Mention(target)

	if sub == "add" {
		ok, err := sudo.Add(target)
		if err != nil {
			return fmt.Errorf("save sudo list: %w", err)
		}
		if !ok {
			return req.ReplyMentions(ctx, tag+" is already a sudo user.", []string{target})
		}
		return req.ReplyMentions(ctx, tag+" is now a sudo user.", []string{target})
	}

	ok, err := sudo.Remove(target)
	if err != nil {
		return fmt.Errorf("save sudo list: %w", err)
	}
	if !ok {
		return req.ReplyMentions(ctx, tag+" is not a sudo user.", []string{target})
	}
	return req.ReplyMentions(ctx, tag+" is no longer a sudo user.", []string{target})
}

func handleMode(ctx context.Context, req *commands.Request) error {
	mode := strings.ToLower(req.Arg(0))
	switch mode {
	case "":
		return req.Replyf(ctx, "The bot is in %s mode.", req.Services.Mode())
	case config.ModePublic, config.ModePrivate:
	default:
		return req.Usage()
	}
	if _, err := req.Services.Store.UpdateBot(func(b *store.BotSettings) { b.Mode = mode }); err != nil {
		return fmt.Errorf("save bot settings: %w", err)
	}
	if mode == config.ModePrivate {
		return req.Reply(ctx, "Private mode: only owners and sudo users can use commands now.")
	}
	return req.Reply(ctx, "Public mode: everyone can use commands now.")
}

func handleSetPrefix(ctx context.Context, req *commands.Request) error {
	p := req.Arg(0)
	if p == "" || len(req.Args) > 1 {
		return req.Usage()
	}
	if utf8.RuneCountInString(p) > maxPrefixLen || strings.ContainsFunc(p, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return commands.Fail("A prefix is 1 to %d symbols, e.g. . ! or #.", maxPrefixLen)
	}
	if _, err := req.Services.Store.UpdateBot(func(b *store.BotSettings) { b.Prefix = p }); err != nil {
		return fmt.Errorf("save bot settings: %w", err)
	}
	return req.Replyf(ctx, "Prefix changed to %s. Try %shelp", p, p)
}

func handleClearTmp(ctx context.Context, req *commands.Request) error {
	tmp := req.Services.Temp
	n, err := tmp.Clear()
	if err != nil {
		return fmt.Errorf("clear temp files: %w", err)
	}
	if busy := tmp.InUse(); busy > 0 {
		return req.Replyf(ctx, "Removed %d temporary file(s). Kept %d still in use.", n, busy)
	}
	return req.Replyf(ctx, "Removed %d temporary file(s).", n)
}

func mentionList(jids []string) string {
	tags := make([]string, len(jids))
	for i, j := range jids {
		tags[i] = types.Mention(j)
	}
	return strings.Join(tags, ", ")
}
