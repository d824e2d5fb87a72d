package bot

import (
	"fmt"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// Job schedules
const (
	TempCleanupSchedule = "@every 10m"
	LogTrimSchedule     = "@daily"
)

// StartJobs arms the periodic maintenance tasks on the shared scheduler.
func (r *Router) StartJobs() error {
	if _, err := r.svc.Scheduler.Every(TempCleanupSchedule, "temp cleanup", r.cleanTemp); err != nil {
		return fmt.Errorf("schedule temp cleanup: %w", err)
	}
	if _, err := r.svc.Scheduler.Every(LogTrimSchedule, "log trim", r.trimLogs); err != nil {
		return fmt.Errorf("schedule log trim: %w", err)
	}
	return nil
}

func (r *Router) cleanTemp() {
	n, err := r.svc.Temp.CleanOld()
	if err != nil {
		L_warn("bot: temp cleanup failed", "error", err)
		return
	}
	if n > 0 {
		L_debug("bot: temp cleanup", "removed", n)
	}
}

func (r *Router) trimLogs() {
	keep := r.svc.Config.Get().LogRetention
	if keep <= 0 {
		return
	}
	for name, log := range map[string]interface {
		Trim(int) (int, error)
	}{"call": r.svc.Store.CallLog, "tag": r.svc.Store.TagLog} {
		n, err := log.Trim(keep)
		if err != nil {
			L_warn("bot: log trim failed", "log", name, "error", err)
			continue
		}
		if n > 0 {
			L_info("bot: trimmed log", "log", name, "dropped", n)
		}
	}
}
