// Command wabot runs a WhatsApp command bot.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/roelfdiedericks/wabot/internal/config"
	. "github.com/roelfdiedericks/wabot/internal/logging"
)

var version = "dev"

// CLI is the command-line surface.
type CLI struct {
	Config   string `help:"Settings file (json, yaml or toml). Defaults to ./wabot.* then the data directory." short:"c" type:"path"`
	LogLevel string `help:"Log level (trace, debug, info, warn, error)." name:"log-level" env:"WABOT_LOG_LEVEL"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Connect to WhatsApp and serve commands."`
	Link    LinkCmd    `cmd:"" help:"Pair this bot with a phone by scanning a QR code."`
	Unlink  UnlinkCmd  `cmd:"" help:"Log out and remove the stored WhatsApp session."`
	Status  StatusCmd  `cmd:"" help:"Show paired devices and data locations."`
	Setting SettingCmd `cmd:"" name:"config" help:"Inspect the effective configuration."`
	Version VersionCmd `cmd:"" help:"Print the version."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Printf("wabot %s\n", version)
	return nil
}

// loadConfig loads settings and initializes logging from them. The
// --log-level flag wins over the file.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logCfg := DefaultConfig()
	logCfg.Level = level
	Init(logCfg)
	return cfg, nil
}

func main() {
	Init(DefaultConfig())

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("wabot"),
		kong.Description("A WhatsApp command bot."),
		kong.UsageOnError(),
		kong.Bind(cli),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wabot: %v\n", err)
		os.Exit(1)
	}
}
