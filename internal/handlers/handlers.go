// Package handlers installs every chat command.
package handlers

import (
	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/handlers/chatbot"
	"github.com/roelfdiedericks/wabot/internal/handlers/download"
	"github.com/roelfdiedericks/wabot/internal/handlers/fun"
	"github.com/roelfdiedericks/wabot/internal/handlers/general"
	"github.com/roelfdiedericks/wabot/internal/handlers/group"
	"github.com/roelfdiedericks/wabot/internal/handlers/mediatools"
	"github.com/roelfdiedericks/wabot/internal/handlers/owner"
	"github.com/roelfdiedericks/wabot/internal/handlers/protection"
	"github.com/roelfdiedericks/wabot/internal/handlers/search"
)

// RegisterAll installs the full command set.
func RegisterAll(m *commands.Manager) {
	general.Register(m)
	group.Register(m)
	protection.Register(m)
	owner.Register(m)
	mediatools.Register(m)
	download.Register(m)
	search.Register(m)
	fun.Register(m)
	chatbot.Register(m)
}
