// Package protection holds the per-group moderation switches (antilink,
// antitag, antibadword) and the bot-wide anticall setting.
package protection

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/store"
)

// maxLimit bounds the warn limit a chat may set.
const maxLimit = 20

// Register installs the moderation commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: moderation.FeatureAntiLink, Description: "Act on links and group invites", Usage: "on|off|delete|warn|kick [limit]", Permission: commands.Admin, Handler: featureHandler(moderation.FeatureAntiLink)},
		{Name: moderation.FeatureAntiTag, Description: "Act on mass mentions and hidden tags", Usage: "on|off|delete|warn|kick [limit]", Permission: commands.Admin, Handler: featureHandler(moderation.FeatureAntiTag)},
		{Name: moderation.FeatureAntiBadword, Description: "Act on words from the chat's list", Usage: "on|off|add|del|list|delete|warn|kick [limit]", Permission: commands.Admin, Handler: handleAntiBadword},
		{Name: "anticall", Description: "Reject (or block) incoming calls", Usage: "enable [reject|block]|disable|status|log|clearlog", Permission: commands.Owner, Handler: handleAntiCall},
	} {
		c.Category = commands.CategoryModeration
		m.Register(c)
	}
}

func feature(s *store.ChatSettings, name string) *store.FeatureConfig {
	switch name {
	case moderation.FeatureAntiTag:
		return &s.AntiTag
	case moderation.FeatureAntiBadword:
		return &s.AntiBadword.FeatureConfig
	}
	return &s.AntiLink
}

func featureHandler(name string) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		return setFeature(ctx, req, name)
	}
}

// setFeature handles the switches shared by every moderation feature.
func setFeature(ctx context.Context, req *commands.Request, name string) error {
	chat := req.Msg.Chat
	sub := strings.ToLower(req.Arg(0))

	if sub == "" {
		settings, err := req.Services.Store.Chat(chat)
		if err != nil {
			return fmt.Errorf("read chat settings: %w", err)
		}
		return req.Reply(ctx, describeFeature(name, *feature(&settings, name)))
	}

	var action string
	limit := 0
	switch sub {
	case "on", "off":
	case store.ActionDelete, store.ActionWarn, store.ActionKick:
		action = sub
		if arg := req.Arg(1); arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 || n > maxLimit {
				return req.UsageHint(fmt.Sprintf("The limit is a number from 1 to %d.", maxLimit))
			}
			limit = n
		}
	default:
		return req.Usage()
	}

	settings, err := req.Services.Store.UpdateChat(chat, func(s *store.ChatSettings) {
		f := feature(s, name)
		f.Enabled = sub != "off"
		if action != "" {
			f.Action = action
		}
		if limit > 0 {
			f.Limit = limit
		}
	})
	if err != nil {
		return fmt.Errorf("save chat settings: %w", err)
	}
	return req.Reply(ctx, describeFeature(name, *feature(&settings, name)))
}

func describeFeature(name string, f store.FeatureConfig) string {
	if !f.Enabled {
		return fmt.Sprintf("%s is off.", name)
	}
	action := f.EffectiveAction()
	if action == store.ActionWarn {
		return fmt.Sprintf("%s is on (action: warn, kick after %d warnings).", name, f.EffectiveLimit())
	}
	return fmt.Sprintf("%s is on (action: %s).", name, action)
}

func handleAntiBadword(ctx context.Context, req *commands.Request) error {
	chat := req.Msg.Chat
	sub := strings.ToLower(req.Arg(0))

	switch sub {
	case "list":
		settings, err := req.Services.Store.Chat(chat)
		if err != nil {
			return fmt.Errorf("read chat settings: %w", err)
		}
		if len(settings.AntiBadword.Words) == 0 {
			return req.Reply(ctx, "The bad word list is empty.")
		}
		return req.Replyf(ctx, "Bad words (%d):\n%s", len(settings.AntiBadword.Words), strings.Join(settings.AntiBadword.Words, ", "))

	case "add", "del":
		words := normalizeWords(req.Args[1:])
		if len(words) == 0 {
			return req.UsageHint("Example: " + req.Prefix + "antibadword add word1 word2")
		}
		changed := 0
		_, err := req.Services.Store.UpdateChat(chat, func(s *store.ChatSettings) {
			list := s.AntiBadword.Words
			for _, w := range words {
				i := slices.Index(list, w)
				switch {
				case sub == "add" && i < 0:
					list = append(list, w)
					changed++
				case sub == "del" && i >= 0:
					list = slices.Delete(list, i, i+1)
					changed++
				}
			}
			s.AntiBadword.Words = list
		})
		if err != nil {
			return fmt.Errorf("save chat settings: %w", err)
		}
		if sub == "add" {
			return req.Replyf(ctx, "Added %d word(s) to the list.", changed)
		}
		return req.Replyf(ctx, "Removed %d word(s) from the list.", changed)
	}
	return setFeature(ctx, req, moderation.FeatureAntiBadword)
}

func normalizeWords(args []string) []string {
	var out []string
	for _, a := range args {
		for _, w := range strings.Split(a, ",") {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" && !slices.Contains(out, w) {
				out = append(out, w)
			}
		}
	}
	return out
}
