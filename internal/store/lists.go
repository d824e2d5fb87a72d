package store

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// JIDList is an ordered, duplicate-free list of JIDs (ban, sudo, owner).
type JIDList struct {
	file *File[[]string]
}

// List returns the JIDs in insertion order.
func (l *JIDList) List() ([]string, error) {
	return l.file.Load()
}

// Contains reports whether jid is listed.
func (l *JIDList) Contains(jid string) (bool, error) {
	list, err := l.file.Load()
	if err != nil {
		return false, err
	}
	return slices.Contains(list, jid), nil
}

// Add appends jid. Returns false if it was already present.
func (l *JIDList) Add(jid string) (bool, error) {
	added := false
	_, err := l.file.Update(func(list *[]string) error {
		if slices.Contains(*list, jid) {
			return nil
		}
		*list = append(*list, jid)
		added = true
		return nil
	})
	return added, err
}

// Remove deletes jid. Returns false if it was not present.
func (l *JIDList) Remove(jid string) (bool, error) {
	removed := false
	_, err := l.file.Update(func(list *[]string) error {
		if i := slices.Index(*list, jid); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
			removed = true
		}
		return nil
	})
	return removed, err
}

// EventLog is an append-only list of LogEntry records.
type EventLog struct {
	file *File[[]LogEntry]
}

// Append records an entry, filling ID and Timestamp if unset.
func (l *EventLog) Append(e LogEntry) (LogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := l.file.Update(func(list *[]LogEntry) error {
		*list = append(*list, e)
		return nil
	})
	return e, err
}

// List returns all entries, oldest first.
func (l *EventLog) List() ([]LogEntry, error) {
	return l.file.Load()
}

// Clear drops every entry and returns how many were removed.
func (l *EventLog) Clear() (int, error) {
	n := 0
	_, err := l.file.Update(func(list *[]LogEntry) error {
		n = len(*list)
		*list = []LogEntry{}
		return nil
	})
	return n, err
}

// Trim keeps only the newest keep entries and returns how many were dropped.
func (l *EventLog) Trim(keep int) (int, error) {
	dropped := 0
	_, err := l.file.Update(func(list *[]LogEntry) error {
		if keep < 0 || len(*list) <= keep {
			return nil
		}
		dropped = len(*list) - keep
		*list = slices.Clone((*list)[dropped:])
		return nil
	})
	return dropped, err
}
