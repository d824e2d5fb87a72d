// Package general holds the informational commands: help, ping, alive,
// owner, jid and stats.
package general

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// Register installs the general commands.
func Register(m *commands.Manager) {
	m.Register(&commands.Command{
		Name:        "help",
		Aliases:     []string{"menu"},
		Category:    commands.CategoryGeneral,
		Description: "List commands, or show help for one",
		Usage:       "[command]",
		Handler:     handleHelp,
	})
	m.Register(&commands.Command{
		Name:        "ping",
		Category:    commands.CategoryGeneral,
		Description: "Check that the bot answers",
		Handler:     handlePing,
	})
	m.Register(&commands.Command{
		Name:        "alive",
		Aliases:     []string{"uptime"},
		Category:    commands.CategoryGeneral,
		Description: "Show how long the bot has been running",
		Handler:     handleAlive,
	})
	m.Register(&commands.Command{
		Name:        "owner",
		Category:    commands.CategoryGeneral,
		Description: "Show who runs this bot",
		Handler:     handleOwner,
	})
	m.Register(&commands.Command{
		Name:        "jid",
		Category:    commands.CategoryGeneral,
		Description: "Show the chat ID and yours (or a tagged user's)",
		Handler:     handleJID,
	})
	m.Register(&commands.Command{
		Name:        "stats",
		Category:    commands.CategoryGeneral,
		Description: "Show command usage statistics",
		Handler:     handleStats,
	})
}

var categoryTitles = map[string]string{
	commands.CategoryGeneral:    "General",
	commands.CategoryGroup:      "Group",
	commands.CategoryModeration: "Moderation",
	commands.CategoryOwner:      "Owner",
	commands.CategoryMedia:      "Media",
	commands.CategoryDownload:   "Download",
	commands.CategorySearch:     "Search",
	commands.CategoryFun:        "Fun",
	commands.CategoryAI:         "AI",
}

func handleHelp(ctx context.Context, req *commands.Request) error {
	m := req.Services.Commands
	p := req.Prefix

	if name := strings.TrimPrefix(req.Arg(0), p); name != "" {
		cmd := m.Get(name)
		if cmd == nil {
			return commands.Fail("No command called %s%s.", p, name)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "*%s%s*", p, cmd.Name)
		if cmd.Usage != "" {
			fmt.Fprintf(&sb, " %s", cmd.Usage)
		}
		fmt.Fprintf(&sb, "\n%s", cmd.Description)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&sb, "\nAliases: %s%s", p, strings.Join(cmd.Aliases, ", "+p))
		}
		if cmd.Permission != commands.Public {
			fmt.Fprintf(&sb, "\nFor: %s", cmd.Permission)
		}
		return req.Reply(ctx, sb.String())
	}

	byCat := m.ByCategory()
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s commands*\n", req.Services.Config.Get().BotName)
	for _, cat := range commands.CategoryOrder {
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		names := make([]string, len(cmds))
		for i, c := range cmds {
			names[i] = p + c.Name
		}
		fmt.Fprintf(&sb, "\n*%s*\n%s\n", categoryTitles[cat], strings.Join(names, "  "))
	}
	fmt.Fprintf(&sb, "\nSend %shelp <command> for details.", p)
	return req.Reply(ctx, sb.String())
}

func handlePing(ctx context.Context, req *commands.Request) error {
	now := req.Services.Scheduler.Now()
	if ts := req.Msg.Timestamp; !ts.IsZero() {
		if lag := now.Sub(ts); lag >= 0 && lag < time.Minute {
			return req.Replyf(ctx, "Pong! %dms", lag.Milliseconds())
		}
	}
	return req.Reply(ctx, "Pong!")
}

func handleAlive(ctx context.Context, req *commands.Request) error {
	up := req.Services.Scheduler.Now().Sub(req.Services.Started)
	return req.Replyf(ctx, "%s is alive.\nUptime: %s", req.Services.Config.Get().BotName, cron.FormatDuration(up))
}

func handleOwner(ctx context.Context, req *commands.Request) error {
	owners := req.Services.Owners()
	if len(owners) == 0 {
		return req.Reply(ctx, "No owner is configured for this bot.")
	}
	tags := make([]string, len(owners))
	for i, o := range owners {
		tags[i] = types.Mention(o)
	}
	return req.ReplyMentions(ctx, "Bot owner: "+strings.Join(tags, ", "), owners)
}

func handleJID(ctx context.Context, req *commands.Request) error {
	user := req.Msg.Sender
	if t := req.Targets(); len(t) > 0 {
		user = t[0]
	}
	return req.Replyf(ctx, "Chat: %s\nUser: %s", req.Msg.Chat, types.Normalize(user))
}

// failingServices lists services with more failures than successes.
func failingServices(outcomes map[string]metrics.SuccessFailSnapshot) []string {
	var out []string
	for name, o := range outcomes {
		if o.Failures > 0 && o.SuccessRate < 0.5 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func handleStats(ctx context.Context, req *commands.Request) error {
	svc := req.Services
	stats := svc.Metrics.Commands()

	var total, failed int64
	for _, s := range stats {
		total += s.Calls
		failed += s.Failures
	}

	var sb strings.Builder
	sb.WriteString("*Bot statistics*\n")
	fmt.Fprintf(&sb, "Uptime: %s\n", cron.FormatDuration(svc.Scheduler.Now().Sub(svc.Started)))
	fmt.Fprintf(&sb, "Commands run: %d (%d failed)\n", total, failed)
	fmt.Fprintf(&sb, "API calls: %d\n", svc.HTTP.Calls())

	if failing := failingServices(svc.Metrics.Outcomes("upstream")); len(failing) > 0 {
		fmt.Fprintf(&sb, "Failing APIs: %s\n", strings.Join(failing, ", "))
	}

	if len(stats) > 0 {
		sb.WriteString("\n*Top commands*\n")
		for i, s := range stats {
			if i == 10 {
				break
			}
			fmt.Fprintf(&sb, "%s%s: %d (avg %.0fms)\n", req.Prefix, s.Name, s.Calls, s.AvgMs)
		}
	}
	return req.Reply(ctx, strings.TrimRight(sb.String(), "\n"))
}
