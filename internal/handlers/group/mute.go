package group

import (
	"context"
	"fmt"
	"time"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// maxMute bounds timed mutes.
const maxMute = 30 * 24 * time.Hour

// muteLength reads ".mute" arguments: a duration ("30m", "2h", "1d") or the
// time the chat reopens ("22:00", "+90m", RFC 3339). clock is set for the
// latter forms.
func muteLength(arg string, now time.Time) (d time.Duration, clock bool, err error) {
	if d, err := cron.ParseDuration(arg); err == nil {
		return d, false, nil
	}
	at, err := cron.ParseAt(arg, now)
	if err != nil {
		return 0, false, err
	}
	return at.Sub(now), true, nil
}

func handleMute(ctx context.Context, req *commands.Request) error {
	svc := req.Services
	now := svc.Scheduler.Now()

	var d time.Duration
	var clock bool
	if arg := req.Arg(0); arg != "" {
		var err error
		d, clock, err = muteLength(arg, now)
		if err != nil || d <= 0 || d > maxMute {
			return req.UsageHint("Give a duration like 30m, 2h or 1d, or a time like 22:00 (at most 30d ahead).")
		}
	}

	if err := req.Socket.SetAnnounce(ctx, req.Msg.Chat, true); err != nil {
		return fmt.Errorf("mute group: %w", err)
	}

	if d == 0 {
		// an untimed mute replaces any pending reopen
		if err := cancelUnmute(svc, req.Msg.Chat); err != nil {
			return err
		}
		return req.Reply(ctx, "Group muted. Only admins can send messages.")
	}

	entry, err := svc.Store.AddSchedule(store.KindUnmute, req.Msg.Chat, now.Add(d))
	if err != nil {
		return fmt.Errorf("save unmute schedule: %w", err)
	}
	armUnmute(svc, req.Socket, entry)
	if clock {
		return req.Replyf(ctx, "Group muted until %s (%s).", now.Add(d).Format("Jan 2 15:04"), cron.FormatDuration(d))
	}
	return req.Replyf(ctx, "Group muted for %s.", cron.FormatDuration(d))
}

func handleUnmute(ctx context.Context, req *commands.Request) error {
	if err := req.Socket.SetAnnounce(ctx, req.Msg.Chat, false); err != nil {
		return fmt.Errorf("unmute group: %w", err)
	}
	if err := cancelUnmute(req.Services, req.Msg.Chat); err != nil {
		return err
	}
	return req.Reply(ctx, "Group unmuted. Everyone can send messages.")
}

func cancelUnmute(svc *commands.Services, chat string) error {
	entry, ok, err := svc.Store.FindSchedule(store.KindUnmute, chat)
	if err != nil {
		return fmt.Errorf("read schedules: %w", err)
	}
	if !ok {
		return nil
	}
	if err := svc.Store.RemoveSchedule(entry.ID); err != nil {
		return fmt.Errorf("remove unmute schedule: %w", err)
	}
	return nil
}

// armUnmute schedules the reopen. The timer only acts while its entry is
// still the chat's pending schedule, so a later .mute or .unmute supersedes it.
func armUnmute(svc *commands.Services, sock types.Socket, entry store.Schedule) {
	svc.Scheduler.At(entry.At, "unmute "+entry.Chat, func() {
		cur, ok, err := svc.Store.FindSchedule(store.KindUnmute, entry.Chat)
		if err != nil {
			L_error("group: read schedules", "chat", entry.Chat, "error", err)
			return
		}
		if !ok || cur.ID != entry.ID {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sock.SetAnnounce(ctx, entry.Chat, false); err != nil {
			L_warn("group: timed unmute failed", "chat", entry.Chat, "error", err)
		} else if _, err := sock.Send(ctx, entry.Chat, types.Outgoing{Text: "Mute time is up. Everyone can send messages again."}); err != nil {
			L_warn("group: unmute notice failed", "chat", entry.Chat, "error", err)
		}
		if err := svc.Store.RemoveSchedule(entry.ID); err != nil {
			L_error("group: remove schedule", "id", entry.ID, "error", err)
		}
	})
}

// RestoreMutes re-arms the timed mutes saved before a restart. Entries
// already due fire on the next scheduler tick.
func RestoreMutes(svc *commands.Services, sock types.Socket) (int, error) {
	list, err := svc.Store.Schedules()
	if err != nil {
		return 0, fmt.Errorf("read schedules: %w", err)
	}
	n := 0
	for _, entry := range list {
		if entry.Kind != store.KindUnmute {
			continue
		}
		armUnmute(svc, sock, entry)
		n++
	}
	if n > 0 {
		L_info("group: restored timed mutes", "count", n)
	}
	return n, nil
}
