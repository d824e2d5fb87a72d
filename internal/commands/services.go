package commands

import (
	"slices"
	"time"

	"github.com/roelfdiedericks/wabot/internal/ai"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/media"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
	"github.com/roelfdiedericks/wabot/internal/upstream"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Services is the shared state handlers reach through a Request.
type Services struct {
	Config    *config.Holder
	Store     *store.Store
	HTTP      *upstream.Client
	Media     *media.Converter
	Temp      *media.TempStore
	AI        *ai.Service
	Scheduler *cron.Scheduler
	Counters  *moderation.Counters
	Metrics   *metrics.MetricsManager
	Commands  *Manager
	Started   time.Time
}

// Prefix is the runtime prefix (.setprefix) or the configured one.
func (s *Services) Prefix() string {
	if bot, err := s.Store.Bot(); err == nil && bot.Prefix != "" {
		return bot.Prefix
	}
	return s.Config.Get().Prefix
}

// Mode is the runtime mode (.mode) or the configured one.
func (s *Services) Mode() string {
	if bot, err := s.Store.Bot(); err == nil && bot.Mode != "" {
		return bot.Mode
	}
	return s.Config.Get().Mode
}

// Owners returns the configured owner JIDs plus data/owner.json.
func (s *Services) Owners() []string {
	var out []string
	for _, n := range s.Config.Get().Owners {
		out = append(out, types.UserJID(n))
	}
	extra, err := s.Store.Owners.List()
	if err != nil {
		L_warn("commands: failed to read owner list", "error", err)
	}
	for _, jid := range extra {
		if !slices.ContainsFunc(out, func(o string) bool { return types.SameUser(o, jid) }) {
			out = append(out, jid)
		}
	}
	return out
}

// IsOwner reports whether jid is a configured or stored owner.
func (s *Services) IsOwner(jid string) bool {
	return slices.ContainsFunc(s.Owners(), func(o string) bool { return types.SameUser(o, jid) })
}

// IsSudo reports whether jid is on the sudo list.
func (s *Services) IsSudo(jid string) bool {
	ok, err := s.Store.Sudo.Contains(jid)
	if err != nil {
		L_warn("commands: failed to read sudo list", "error", err)
	}
	return ok
}

// IsPrivileged is owner or sudo.
func (s *Services) IsPrivileged(jid string) bool {
	return s.IsOwner(jid) || s.IsSudo(jid)
}

// IsBanned reports whether jid is on the ban list.
func (s *Services) IsBanned(jid string) bool {
	ok, err := s.Store.Banned.Contains(jid)
	if err != nil {
		L_warn("commands: failed to read ban list", "error", err)
	}
	return ok
}

// API returns the configured endpoint for name.
func (s *Services) API(name string) upstream.Endpoint {
	return s.Config.Get().APIs[name]
}
