// Package commands is the bot's command registry and dispatcher: prefix
// parsing, permission checks, timeouts, panic recovery and the single place
// where handler errors become chat replies.
package commands

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Permission is who may run a command
type Permission int

const (
	Public Permission = iota // anyone
	Group                    // anyone, inside a group
	Admin                    // group admins, owners and sudo users, inside a group
	Owner                    // owners and sudo users
)

func (p Permission) String() string {
	switch p {
	case Group:
		return "group"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	}
	return "public"
}

// Categories, in help order
const (
	CategoryGeneral    = "general"
	CategoryGroup      = "group"
	CategoryModeration = "moderation"
	CategoryOwner      = "owner"
	CategoryMedia      = "media"
	CategoryDownload   = "download"
	CategorySearch     = "search"
	CategoryFun        = "fun"
	CategoryAI         = "ai"
)

// CategoryOrder lists categories as help shows them.
var CategoryOrder = []string{
	CategoryGeneral, CategoryGroup, CategoryModeration, CategoryOwner,
	CategoryMedia, CategoryDownload, CategorySearch, CategoryFun, CategoryAI,
}

// HandlerFunc runs one command. Returned errors are turned into replies by
// the dispatcher.
type HandlerFunc func(ctx context.Context, req *Request) error

// Command is one registered chat command
type Command struct {
	Name        string   // e.g. "weather"
	Aliases     []string // e.g. ["w"]
	Category    string
	Description string
	Usage       string // arguments, e.g. "<city>" (optional)
	Permission  Permission
	BotAdmin    bool // bot must be a group admin
	Handler     HandlerFunc
}

// Manager is the command registry
type Manager struct {
	mu       sync.RWMutex
	commands map[string]*Command // keyed by name and alias (lowercase)
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{commands: make(map[string]*Command)}
}

// Register adds a command to the manager
func (m *Manager) Register(cmd *Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		m.commands[strings.ToLower(alias)] = cmd
	}
}

// Get returns a command by name (or alias)
func (m *Manager) Get(name string) *Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commands[strings.ToLower(name)]
}

// List returns all unique commands (no aliases), sorted by name
func (m *Manager) List() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[*Command]bool)
	var list []*Command
	for _, cmd := range m.commands {
		if !seen[cmd] {
			seen[cmd] = true
			list = append(list, cmd)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// ByCategory groups List by category.
func (m *Manager) ByCategory() map[string][]*Command {
	out := make(map[string][]*Command)
	for _, cmd := range m.List() {
		out[cmd.Category] = append(out[cmd.Category], cmd)
	}
	return out
}

// Parse splits text into a command name and the remaining query when it
// starts with prefix. The name is lowercased; the query keeps its case.
func Parse(text, prefix string) (name, query string, ok bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(text[len(prefix):])
	if rest == "" {
		return "", "", false
	}
	name = rest
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, query = rest[:i], rest[i:]
	}
	return strings.ToLower(name), strings.TrimSpace(query), true
}
