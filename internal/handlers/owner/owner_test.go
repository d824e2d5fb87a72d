package owner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/commands/commandstest"
)

const (
	owner = commandstest.Owner
	user  = commandstest.User
)

func registerWithPing(m *commands.Manager) {
	Register(m)
	m.Register(&commands.Command{Name: "ping", Handler: func(ctx context.Context, req *commands.Request) error {
		return req.Reply(ctx, "pong")
	}})
}

func TestBanAndUnban(t *testing.T) {
	env := commandstest.NewEnv(t, registerWithPing)

	env.RunMentions(owner, owner, ".ban", user)
	if got := env.Socket.LastText(); got != "Banned @27831111111. The bot will ignore them." {
		t.Errorf("ban = %q", got)
	}
	before := env.Socket.SentCount()
	env.Run(user, user, ".ping")
	if env.Socket.SentCount() != before {
		t.Error("banned user got a reply")
	}

	env.Run(owner, owner, ".banlist")
	if got := env.Socket.LastText(); got != "Banned users (1):\n1. @27831111111" {
		t.Errorf("banlist = %q", got)
	}

	env.Run(owner, owner, ".unban 27831111111")
	env.Run(user, user, ".ping")
	if got := env.Socket.LastText(); got != "pong" {
		t.Errorf("unbanned user reply = %q", got)
	}

	env.RunMentions(owner, owner, ".ban", owner)
	if got := env.Socket.LastText(); got != "The bot owner can't be banned." {
		t.Errorf("self ban = %q", got)
	}
}

func TestSudo(t *testing.T) {
	env := commandstest.NewEnv(t, registerWithPing)

	env.Run(user, user, ".sudo list")
	if got := env.Socket.LastText(); got != "Only the bot owner can use this command." {
		t.Errorf("non-owner sudo = %q", got)
	}

	env.RunMentions(owner, owner, ".sudo add", user)
	if !env.Services.IsSudo(user) {
		t.Fatal("sudo not granted")
	}
	env.Run(user, user, ".sudo list")
	if got := env.Socket.LastText(); got != "Sudo users (1):\n1. @27831111111" {
		t.Errorf("sudo list = %q", got)
	}

	env.RunMentions(owner, owner, ".sudo del", user)
	if env.Services.IsSudo(user) {
		t.Error("sudo not revoked")
	}
	env.Run(owner, owner, ".sudo maybe")
	if got := env.Socket.LastText(); got != "Usage: .sudo add|del|list [@user]" {
		t.Errorf("bad sub = %q", got)
	}
}

func TestModeAndPrefix(t *testing.T) {
	env := commandstest.NewEnv(t, registerWithPing)

	env.Run(owner, owner, ".mode private")
	before := env.Socket.SentCount()
	env.Run(user, user, ".ping")
	if env.Socket.SentCount() != before {
		t.Error("private mode answered a stranger")
	}
	env.Run(owner, owner, ".mode")
	if got := env.Socket.LastText(); got != "The bot is in private mode." {
		t.Errorf("mode = %q", got)
	}
	env.Run(owner, owner, ".mode public")

	tests := []struct {
		arg, reply string
	}{
		{"abc", "A prefix is 1 to 3 symbols, e.g. . ! or #."},
		{"!!!!", "A prefix is 1 to 3 symbols, e.g. . ! or #."},
		{"!", "Prefix changed to !. Try !help"},
	}
	for _, tt := range tests {
		env.Run(owner, owner, ".setprefix "+tt.arg)
		if got := env.Socket.LastText(); got != tt.reply {
			t.Errorf("setprefix %s = %q, want %q", tt.arg, got, tt.reply)
		}
	}

	if env.Run(user, user, ".ping") {
		t.Error("old prefix still works")
	}
	env.Run(user, user, "!ping")
	if got := env.Socket.LastText(); got != "pong" {
		t.Errorf("new prefix reply = %q", got)
	}
}

func TestClearTmp(t *testing.T) {
	env := commandstest.NewEnv(t, Register)
	for _, name := range []string{"a.webp", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(env.Services.Temp.Dir(), name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	env.Run(owner, owner, ".cleartmp")
	if got := env.Socket.LastText(); got != "Removed 2 temporary file(s)." {
		t.Errorf("cleartmp = %q", got)
	}
}

func TestClearTmpKeepsFilesInUse(t *testing.T) {
	env := commandstest.NewEnv(t, Register)
	tmp := env.Services.Temp
	busy, err := tmp.Save([]byte("converting"), ".png")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp.Dir(), "stale.mp3"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	env.Run(owner, owner, ".cleartmp")
	if got := env.Socket.LastText(); got != "Removed 1 temporary file(s). Kept 1 still in use." {
		t.Errorf("cleartmp = %q", got)
	}
	if _, err := os.Stat(busy); err != nil {
		t.Errorf("in-use file removed: %v", err)
	}

	tmp.Release(busy)
	if _, err := os.Stat(busy); !os.IsNotExist(err) {
		t.Errorf("released file still present: %v", err)
	}
}
