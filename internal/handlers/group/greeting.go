package group

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

type greetingKind int

const (
	welcomeKind greetingKind = iota
	goodbyeKind
)

func (k greetingKind) name() string {
	if k == goodbyeKind {
		return "Goodbye"
	}
	return "Welcome"
}

func (k greetingKind) field(s *store.ChatSettings) *store.GreetingConfig {
	if k == goodbyeKind {
		return &s.Goodbye
	}
	return &s.Welcome
}

func (k greetingKind) defaultText(req *commands.Request) string {
	cfg := req.Services.Config.Get()
	if k == goodbyeKind {
		return cfg.GoodbyeText
	}
	return cfg.WelcomeText
}

func greetingHandler(kind greetingKind) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		chat := req.Msg.Chat
		switch strings.ToLower(req.Arg(0)) {
		case "":
			settings, err := req.Services.Store.Chat(chat)
			if err != nil {
				return fmt.Errorf("read chat settings: %w", err)
			}
			g := kind.field(&settings)
			text := g.Text
			if text == "" {
				text = kind.defaultText(req)
			}
			state := "off"
			if g.Enabled {
				state = "on"
			}
			return req.Replyf(ctx, "%s messages are %s.\nText: %s", kind.name(), state, text)

		case "on":
			text := strings.TrimSpace(strings.TrimPrefix(req.Query, req.Args[0]))
			_, err := req.Services.Store.UpdateChat(chat, func(s *store.ChatSettings) {
				g := kind.field(s)
				g.Enabled = true
				if text != "" {
					g.Text = text
				}
			})
			if err != nil {
				return fmt.Errorf("save chat settings: %w", err)
			}
			return req.Replyf(ctx, "%s messages enabled.", kind.name())

		case "off":
			_, err := req.Services.Store.UpdateChat(chat, func(s *store.ChatSettings) {
				kind.field(s).Enabled = false
			})
			if err != nil {
				return fmt.Errorf("save chat settings: %w", err)
			}
			return req.Replyf(ctx, "%s messages disabled.", kind.name())
		}
		return req.UsageHint("Placeholders: @user, {group}, {members}.")
	}
}

// Greeting returns the rendered welcome (or goodbye) text for user in g, or
// "" when the chat has it switched off.
func Greeting(svc *commands.Services, g *types.GroupInfo, user string, joined bool) (string, error) {
	settings, err := svc.Store.Chat(g.JID)
	if err != nil {
		return "", fmt.Errorf("read chat settings: %w", err)
	}
	cfg := settings.Welcome
	text := svc.Config.Get().WelcomeText
	if !joined {
		cfg = settings.Goodbye
		text = svc.Config.Get().GoodbyeText
	}
	if !cfg.Enabled {
		return "", nil
	}
	if cfg.Text != "" {
		text = cfg.Text
	}
	return RenderGreeting(text, user, g), nil
}

// RenderGreeting fills @user, {user}, {group} and {members} in tmpl.
func RenderGreeting(tmpl, user string, g *types.GroupInfo) string {
	r := strings.NewReplacer(
		"@user", types.Mention(user),
		"{user}", types.Mention(user),
		"{group}", g.Name,
		"{members}", strconv.Itoa(len(g.Participants)),
	)
	return r.Replace(tmpl)
}
