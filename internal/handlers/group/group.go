// Package group holds the group administration commands.
package group

import (
	"context"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// Register installs the group commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "kick", Description: "Remove members from the group", Usage: "@user|reply|number", Permission: commands.Admin, BotAdmin: true, Handler: participantHandler(types.ParticipantRemove)},
		{Name: "add", Description: "Add numbers to the group", Usage: "<number> [number...]", Permission: commands.Admin, BotAdmin: true, Handler: participantHandler(types.ParticipantAdd)},
		{Name: "promote", Description: "Make members group admins", Usage: "@user|reply|number", Permission: commands.Admin, BotAdmin: true, Handler: participantHandler(types.ParticipantPromote)},
		{Name: "demote", Description: "Take admin rights away", Usage: "@user|reply|number", Permission: commands.Admin, BotAdmin: true, Handler: participantHandler(types.ParticipantDemote)},
		{Name: "mute", Description: "Only admins may send messages, optionally for a while", Usage: "[duration|time, e.g. 30m or 22:00]", Permission: commands.Admin, BotAdmin: true, Handler: handleMute},
		{Name: "unmute", Description: "Let everyone send messages again", Permission: commands.Admin, BotAdmin: true, Handler: handleUnmute},
		{Name: "tagall", Description: "Mention every member", Usage: "[text]", Permission: commands.Admin, Handler: handleTagAll},
		{Name: "hidetag", Description: "Notify every member without visible tags", Usage: "<text>", Permission: commands.Admin, Handler: handleHideTag},
		{Name: "groupinfo", Description: "Show group details", Permission: commands.Group, Handler: handleGroupInfo},
		{Name: "link", Description: "Show the group invite link", Permission: commands.Admin, BotAdmin: true, Handler: handleLink},
		{Name: "resetlink", Description: "Revoke the invite link and make a new one", Permission: commands.Admin, BotAdmin: true, Handler: handleResetLink},
		{Name: "delete", Aliases: []string{"del"}, Description: "Delete the replied-to message", Usage: "(reply to a message)", Permission: commands.Admin, Handler: handleDelete},
		{Name: "warn", Description: "Warn a member; the limit gets them removed", Usage: "@user|reply [reason]", Permission: commands.Admin, BotAdmin: true, Handler: handleWarn},
		{Name: "warnings", Description: "Show a member's warnings", Usage: "[@user|reply]", Permission: commands.Group, Handler: handleWarnings},
		{Name: "resetwarn", Description: "Clear a member's warnings", Usage: "@user|reply", Permission: commands.Admin, Handler: handleResetWarn},
		{Name: "welcome", Description: "Greet new members", Usage: "on|off [text]", Permission: commands.Admin, Handler: greetingHandler(welcomeKind)},
		{Name: "goodbye", Description: "Say goodbye to leaving members", Usage: "on|off [text]", Permission: commands.Admin, Handler: greetingHandler(goodbyeKind)},
	} {
		c.Category = commands.CategoryGroup
		m.Register(c)
	}
}

var participantVerbs = map[types.ParticipantAction]string{
	types.ParticipantRemove:  "Removed",
	types.ParticipantAdd:     "Added",
	types.ParticipantPromote: "Promoted",
	types.ParticipantDemote:  "Demoted",
}

func participantHandler(action types.ParticipantAction) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		targets := req.Targets()
		if len(targets) == 0 {
			return req.Usage()
		}
		if action == types.ParticipantRemove || action == types.ParticipantDemote {
			for _, t := range targets {
				if req.Services.IsOwner(t) {
					return commands.Fail("I won't do that to the bot owner.")
				}
			}
		}

		if err := req.Socket.UpdateParticipants(ctx, req.Msg.Chat, targets, action); err != nil {
			return fmt.Errorf("%s participants: %w", action, err)
		}
		return req.ReplyMentions(ctx, participantVerbs[action]+" "+mentionList(targets), targets)
	}
}

func handleTagAll(ctx context.Context, req *commands.Request) error {
	g, err := req.Group(ctx)
	if err != nil {
		return err
	}
	members := g.Members()

	var sb strings.Builder
	sb.WriteString("*Attention everyone*")
	if req.Query != "" {
		sb.WriteString("\n" + req.Query)
	}
	sb.WriteString("\n")
	for _, jid := range members {
		sb.WriteString("\n" + types.Mention(jid))
	}
	_, err = req.Socket.Send(ctx, req.Msg.Chat, types.Outgoing{Text: sb.String(), Mentions: members})
	return err
}

func handleHideTag(ctx context.Context, req *commands.Request) error {
	text := req.Query
	if text == "" && req.Msg.Quoted != nil {
		text = req.Msg.Quoted.Text
	}
	if text == "" {
		return req.Usage()
	}
	g, err := req.Group(ctx)
	if err != nil {
		return err
	}
	_, err = req.Socket.Send(ctx, req.Msg.Chat, types.Outgoing{Text: text, Mentions: g.Members()})
	return err
}

func handleGroupInfo(ctx context.Context, req *commands.Request) error {
	g, err := req.Group(ctx)
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", g.Name)
	fmt.Fprintf(&sb, "ID: %s\n", g.JID)
	fmt.Fprintf(&sb, "Members: %d\n", len(g.Participants))
	fmt.Fprintf(&sb, "Admins: %d\n", len(g.Admins()))
	if g.Owner != "" {
		fmt.Fprintf(&sb, "Created by: %s\n", types.Mention(g.Owner))
	}
	if !g.Created.IsZero() {
		fmt.Fprintf(&sb, "Created: %s\n", g.Created.Format("2006-01-02"))
	}
	if g.Announce {
		sb.WriteString("Only admins can send messages\n")
	}
	if g.Topic != "" {
		fmt.Fprintf(&sb, "\n%s", g.Topic)
	}

	var mentions []string
	if g.Owner != "" {
		mentions = []string{g.Owner}
	}
	return req.ReplyMentions(ctx, strings.TrimRight(sb.String(), "\n"), mentions)
}

func handleLink(ctx context.Context, req *commands.Request) error {
	link, err := req.Socket.InviteLink(ctx, req.Msg.Chat, false)
	if err != nil {
		return fmt.Errorf("invite link: %w", err)
	}
	return req.Reply(ctx, link)
}

func handleResetLink(ctx context.Context, req *commands.Request) error {
	link, err := req.Socket.InviteLink(ctx, req.Msg.Chat, true)
	if err != nil {
		return fmt.Errorf("reset invite link: %w", err)
	}
	return req.Replyf(ctx, "Invite link reset.\nNew link: %s", link)
}

func handleDelete(ctx context.Context, req *commands.Request) error {
	q := req.Msg.Quoted
	if q == nil || q.ID == "" {
		return req.Usage()
	}
	key := types.MessageKey{
		Chat:   req.Msg.Chat,
		ID:     q.ID,
		Sender: q.Sender,
		FromMe: types.SameUser(q.Sender, req.Socket.OwnJID()),
	}
	if err := req.Socket.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func mentionList(jids []string) string {
	tags := make([]string, len(jids))
	for i, j := range jids {
		tags[i] = types.Mention(j)
	}
	return strings.Join(tags, ", ")
}
