package protection

import (
	"context"
	"fmt"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// logShown is how many call-log entries .anticall log prints.
const logShown = 10

func handleAntiCall(ctx context.Context, req *commands.Request) error {
	st := req.Services.Store

	switch strings.ToLower(req.Arg(0)) {
	case "enable", "on":
		action := strings.ToLower(req.Arg(1))
		switch action {
		case "":
			action = store.CallReject
		case store.CallReject, store.CallBlock:
		default:
			return req.Usage()
		}
		if err := st.SetAntiCall(store.AntiCall{Enabled: true, Action: action}); err != nil {
			return fmt.Errorf("save anticall: %w", err)
		}
		return req.Replyf(ctx, "Anti-call enabled. Calls will be rejected%s.", blockSuffix(action))

	case "disable", "off":
		if err := st.SetAntiCall(store.AntiCall{}); err != nil {
			return fmt.Errorf("save anticall: %w", err)
		}
		return req.Reply(ctx, "Anti-call disabled.")

	case "status", "":
		ac, err := st.AntiCall()
		if err != nil {
			return fmt.Errorf("read anticall: %w", err)
		}
		if !ac.Enabled {
			return req.Reply(ctx, "Anti-call is off.")
		}
		return req.Replyf(ctx, "Anti-call is on. Calls are rejected%s.", blockSuffix(ac.Action))

	case "log":
		entries, err := st.CallLog.List()
		if err != nil {
			return fmt.Errorf("read call log: %w", err)
		}
		if len(entries) == 0 {
			return req.Reply(ctx, "No calls have been logged.")
		}
		shown := entries
		if len(shown) > logShown {
			shown = shown[len(shown)-logShown:]
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Call log (%d total, newest last):", len(entries))
		for _, e := range shown {
			fmt.Fprintf(&sb, "\n%s %s %s", e.Timestamp.UTC().Format("2006-01-02 15:04"), types.UserPart(e.From), e.Action)
		}
		return req.Reply(ctx, sb.String())

	case "clearlog":
		n, err := st.CallLog.Clear()
		if err != nil {
			return fmt.Errorf("clear call log: %w", err)
		}
		return req.Replyf(ctx, "Cleared %d call log entries.", n)
	}
	return req.Usage()
}

func blockSuffix(action string) string {
	if action == store.CallBlock {
		return " and callers blocked"
	}
	return ""
}
