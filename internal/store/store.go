package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roelfdiedericks/wabot/internal/paths"
)

// Store groups every persisted file under one data directory.
type Store struct {
	dir string

	settings  *File[map[string]ChatSettings]
	anticall  *File[AntiCall]
	bot       *File[BotSettings]
	schedules *File[[]Schedule]

	Banned  *JIDList
	Sudo    *JIDList
	Owners  *JIDList
	CallLog *EventLog
	TagLog  *EventLog
}

// Open prepares the store layout under dir.
func Open(dir string) (*Store, error) {
	if err := paths.EnsureDir(filepath.Join(dir, "data")); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{
		dir:       dir,
		settings:  NewFile[map[string]ChatSettings](filepath.Join(dir, "settings.json")),
		anticall:  NewFile[AntiCall](filepath.Join(dir, "anticall.json")),
		bot:       NewFile[BotSettings](filepath.Join(dir, "bot.json")),
		schedules: NewFile[[]Schedule](filepath.Join(dir, "schedules.json")),
		Banned:    &JIDList{file: NewFile[[]string](filepath.Join(dir, "data", "banned.json"))},
		Sudo:      &JIDList{file: NewFile[[]string](filepath.Join(dir, "data", "sudo.json"))},
		Owners:    &JIDList{file: NewFile[[]string](filepath.Join(dir, "data", "owner.json"))},
		CallLog:   &EventLog{file: NewFile[[]LogEntry](filepath.Join(dir, "calllog.json"))},
		TagLog:    &EventLog{file: NewFile[[]LogEntry](filepath.Join(dir, "taglog.json"))},
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Chat returns a chat's settings (zero value if never configured).
func (s *Store) Chat(chat string) (ChatSettings, error) {
	all, err := s.settings.Load()
	if err != nil {
		return ChatSettings{}, err
	}
	return all[chat], nil
}

// UpdateChat applies fn to a chat's settings and persists the result.
func (s *Store) UpdateChat(chat string, fn func(*ChatSettings)) (ChatSettings, error) {
	var out ChatSettings
	_, err := s.settings.Update(func(all *map[string]ChatSettings) error {
		if *all == nil {
			*all = make(map[string]ChatSettings)
		}
		cs := (*all)[chat]
		fn(&cs)
		(*all)[chat] = cs
		out = cs
		return nil
	})
	return out, err
}

// AntiCall returns the anti-call setting.
func (s *Store) AntiCall() (AntiCall, error) {
	return s.anticall.Load()
}

// SetAntiCall persists the anti-call setting.
func (s *Store) SetAntiCall(ac AntiCall) error {
	return s.anticall.Save(ac)
}

// Bot returns the runtime bot overrides.
func (s *Store) Bot() (BotSettings, error) {
	return s.bot.Load()
}

// UpdateBot applies fn to the runtime bot overrides.
func (s *Store) UpdateBot(fn func(*BotSettings)) (BotSettings, error) {
	return s.bot.Update(func(b *BotSettings) error {
		fn(b)
		return nil
	})
}

// Schedules returns pending schedules ordered by due time.
func (s *Store) Schedules() ([]Schedule, error) {
	list, err := s.schedules.Load()
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].At.Before(list[j].At) })
	return list, nil
}

// AddSchedule persists a schedule, replacing any of the same kind for the
// same chat. The stored entry (with ID) is returned.
func (s *Store) AddSchedule(kind, chat string, at time.Time) (Schedule, error) {
	entry := Schedule{ID: uuid.NewString(), Kind: kind, Chat: chat, At: at.UTC()}
	_, err := s.schedules.Update(func(list *[]Schedule) error {
		kept := (*list)[:0]
		for _, e := range *list {
			if e.Kind == kind && e.Chat == chat {
				continue
			}
			kept = append(kept, e)
		}
		*list = append(kept, entry)
		return nil
	})
	return entry, err
}

// FindSchedule returns the pending schedule of kind for chat, if any.
func (s *Store) FindSchedule(kind, chat string) (Schedule, bool, error) {
	list, err := s.schedules.Load()
	if err != nil {
		return Schedule{}, false, err
	}
	for _, e := range list {
		if e.Kind == kind && e.Chat == chat {
			return e, true, nil
		}
	}
	return Schedule{}, false, nil
}

// RemoveSchedule deletes a schedule by ID. Removing an unknown ID is not an error.
func (s *Store) RemoveSchedule(id string) error {
	_, err := s.schedules.Update(func(list *[]Schedule) error {
		kept := (*list)[:0]
		for _, e := range *list {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		*list = kept
		return nil
	})
	return err
}
