package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/wabot/internal/channels/whatsapp"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/paths"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

// LinkCmd pairs the bot with a phone.
type LinkCmd struct{}

func (LinkCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(titleStyle.Render("Link WhatsApp"))
	fmt.Println("Open WhatsApp on your phone, go to Linked Devices and scan the code below.")
	if err := whatsapp.LinkDevice(ctx, cfg.DataDir, os.Stdout); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("Linked.") + " Start the bot with 'wabot run'.")
	return nil
}

// UnlinkCmd removes the stored session.
type UnlinkCmd struct{}

func (UnlinkCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	n, err := whatsapp.UnlinkDevice(context.Background(), cfg.DataDir)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d device(s). Remove the linked device on your phone too.\n", n)
	return nil
}

// StatusCmd shows what is paired and where data lives.
type StatusCmd struct{}

func (StatusCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	devices, err := whatsapp.PairedDevices(context.Background(), cfg.DataDir)
	if err != nil {
		return err
	}

	settings := cfg.Path()
	if settings == "" {
		settings = warnStyle.Render("none (defaults)")
	}
	rows := []string{
		titleStyle.Render("wabot " + version),
		field("settings", settings),
		field("data", cfg.DataDir),
		field("session", paths.SessionDBPath(cfg.DataDir)),
		field("prefix", cfg.Prefix),
		field("mode", cfg.Mode),
		field("owners", ownerList(cfg.Owners)),
		"",
	}
	if len(devices) == 0 {
		rows = append(rows, warnStyle.Render("No device paired. Run 'wabot link'."))
	}
	for _, d := range devices {
		rows = append(rows,
			field("device", okStyle.Render(d.JID)),
			field("name", d.PushName),
			field("platform", d.Platform),
		)
	}
	fmt.Println(panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	return nil
}

func ownerList(owners []string) string {
	if len(owners) == 0 {
		return warnStyle.Render("none")
	}
	return strings.Join(owners, ", ")
}

// SettingCmd groups config subcommands.
type SettingCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration with secrets masked."`
}

// ConfigShowCmd prints the merged config as YAML.
type ConfigShowCmd struct{}

func (ConfigShowCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(redact(cfg))
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if cfg.Path() != "" {
		fmt.Println(titleStyle.Render("# " + cfg.Path()))
	}
	fmt.Print(string(out))
	return nil
}

// redact returns a copy with keys masked.
func redact(cfg *config.Config) *config.Config {
	c := *cfg
	c.AI.APIKey = mask(c.AI.APIKey)
	c.AI.ImageAPIKey = mask(c.AI.ImageAPIKey)
	c.APIs = make(map[string]upstream.Endpoint, len(cfg.APIs))
	for name, ep := range cfg.APIs {
		c.APIs[name] = redactEndpoint(ep)
	}
	return &c
}

func redactEndpoint(ep upstream.Endpoint) upstream.Endpoint {
	ep.Key = mask(ep.Key)
	if len(ep.Fallbacks) > 0 {
		fb := make([]upstream.Endpoint, len(ep.Fallbacks))
		for i, f := range ep.Fallbacks {
			fb[i] = redactEndpoint(f)
		}
		ep.Fallbacks = fb
	}
	return ep
}

func mask(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
