package group

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

func handleWarn(ctx context.Context, req *commands.Request) error {
	targets := req.Targets()
	if len(targets) == 0 {
		return req.Usage()
	}
	target := targets[0]

	if req.Services.IsPrivileged(target) {
		return commands.Fail("Owners and sudo users can't be warned.")
	}
	g, err := req.Group(ctx)
	if err != nil {
		return err
	}
	if g.IsAdmin(target) {
		return req.ReplyMentions(ctx, types.Mention(target)+" is a group admin and can't be warned.", []string{target})
	}

	cfg := store.FeatureConfig{Enabled: true, Action: store.ActionWarn, Limit: store.DefaultLimit}
	v := req.Services.Counters.Apply(moderation.FeatureWarn, req.Msg.Chat, target, cfg)
	tag := types.Mention(target)

	if v.Kick {
		if err := req.Socket.UpdateParticipants(ctx, req.Msg.Chat, []string{target}, types.ParticipantRemove); err != nil {
			return fmt.Errorf("kick warned user: %w", err)
		}
		return req.ReplyMentions(ctx, fmt.Sprintf("%s reached %d/%d warnings and was removed.", tag, v.Count, v.Limit), []string{target})
	}

	text := fmt.Sprintf("%s has been warned (%d/%d).", tag, v.Count, v.Limit)
	if reason := warnReason(req.Args); reason != "" {
		text += "\nReason: " + reason
	}
	return req.ReplyMentions(ctx, text, []string{target})
}

// warnReason drops the leading @mentions and numbers from args.
func warnReason(args []string) string {
	i := 0
	for i < len(args) && (strings.HasPrefix(args[i], "@") || isNumber(args[i])) {
		i++
	}
	return strings.Join(args[i:], " ")
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func handleWarnings(ctx context.Context, req *commands.Request) error {
	target := req.Msg.Sender
	if t := req.Targets(); len(t) > 0 {
		target = t[0]
	}
	tag := types.Mention(target)

	counts := req.Services.Counters.UserCounts(req.Msg.Chat, target)
	if len(counts) == 0 {
		return req.ReplyMentions(ctx, tag+" has no warnings.", []string{target})
	}

	settings, err := req.Services.Store.Chat(req.Msg.Chat)
	if err != nil {
		return fmt.Errorf("read chat settings: %w", err)
	}
	limits := map[string]int{
		moderation.FeatureWarn:        store.DefaultLimit,
		moderation.FeatureAntiLink:    settings.AntiLink.EffectiveLimit(),
		moderation.FeatureAntiTag:     settings.AntiTag.EffectiveLimit(),
		moderation.FeatureAntiBadword: settings.AntiBadword.EffectiveLimit(),
	}

	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Strings(features)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Warnings for %s:", tag)
	for _, f := range features {
		fmt.Fprintf(&sb, "\n%s: %d/%d", f, counts[f], limits[f])
	}
	return req.ReplyMentions(ctx, sb.String(), []string{target})
}

func handleResetWarn(ctx context.Context, req *commands.Request) error {
	targets := req.Targets()
	if len(targets) == 0 {
		return req.Usage()
	}
	target := targets[0]
	req.Services.Counters.ResetUser(req.Msg.Chat, target)
	return req.ReplyMentions(ctx, "Warnings cleared for "+types.Mention(target)+".", []string{target})
}
