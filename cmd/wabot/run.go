package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sevlyar/go-daemon"

	"github.com/roelfdiedericks/wabot/internal/ai"
	"github.com/roelfdiedericks/wabot/internal/bot"
	"github.com/roelfdiedericks/wabot/internal/bus"
	"github.com/roelfdiedericks/wabot/internal/channels/whatsapp"
	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/handlers"
	"github.com/roelfdiedericks/wabot/internal/handlers/group"
	"github.com/roelfdiedericks/wabot/internal/media"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/paths"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/upstream"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// RunCmd connects and serves until interrupted or logged out.
type RunCmd struct {
	Detach bool `help:"Run in the background; logs go to <dataDir>/wabot.log." short:"d"`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if err := paths.EnsureDir(cfg.DataDir); err != nil {
		return err
	}

	if r.Detach {
		dctx := &daemon.Context{
			PidFileName: filepath.Join(cfg.DataDir, "wabot.pid"),
			PidFilePerm: 0644,
			LogFileName: filepath.Join(cfg.DataDir, "wabot.log"),
			LogFilePerm: 0640,
			WorkDir:     ".",
			Umask:       027,
		}
		child, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("failed to detach: %w", err)
		}
		if child != nil {
			fmt.Printf("wabot started in background (pid %d), logging to %s\n", child.Pid, dctx.LogFileName)
			return nil
		}
		defer dctx.Release() //nolint:errcheck
		// stderr is the log file now; re-init picks the JSON formatter
		if _, err := cli.loadConfig(); err != nil {
			return err
		}
	}

	return serve(cfg)
}

// serve wires every component and blocks until shutdown.
func serve(cfg *config.Config) error {
	start := time.Now()
	L_info("wabot starting", "version", version, "dataDir", cfg.DataDir, "settings", cfg.Path())

	holder := config.NewHolder(cfg)
	events := bus.New()

	events.Subscribe(bus.TopicConfigReloaded, func(e bus.Event) {
		next, ok := e.Data.(*config.Config)
		if !ok {
			return
		}
		if level, err := ParseLevel(next.LogLevel); err == nil {
			SetLevel(level)
		}
	})
	if cfg.Path() != "" {
		watcher, err := config.NewWatcher(cfg.Path(), holder, events)
		if err != nil {
			L_warn("config: hot reload disabled", "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop() //nolint:errcheck
		}
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}

	tmp, err := media.NewTempStore(filepath.Join(cfg.DataDir, "tmp"), cfg.Media.TempTTL.D())
	if err != nil {
		return err
	}
	if n, err := tmp.Clear(); err == nil && n > 0 {
		L_debug("media: cleared leftover temp files", "count", n)
	}

	sched := cron.New(cron.RealClock{})
	defer sched.Stop()

	m := metrics.GetInstance()
	if err := m.EnablePersistence(filepath.Join(cfg.DataDir, metrics.DBFileName)); err != nil {
		L_warn("metrics: persistence disabled", "error", err)
	}
	defer m.Close() //nolint:errcheck

	manager := commands.NewManager()
	handlers.RegisterAll(manager)

	svc := &commands.Services{
		Config: holder,
		Store:  st,
		HTTP: upstream.New(upstream.Options{
			Timeout:          cfg.HTTP.Timeout.D(),
			MaxDownloadBytes: cfg.HTTP.MaxDownloadBytes,
			RatePerSecond:    cfg.HTTP.RatePerSecond,
			Burst:            cfg.HTTP.Burst,
			UserAgent:        cfg.HTTP.UserAgent,
		}),
		Media: media.NewConverter(media.Options{
			FFmpeg:            cfg.Media.FFmpeg,
			CWebP:             cfg.Media.CWebP,
			MaxStickerSeconds: cfg.Media.MaxStickerSeconds,
		}, media.ExecRunner{}, tmp),
		Temp:      tmp,
		AI:        ai.FromConfig(cfg.AI, nil),
		Scheduler: sched,
		Counters:  moderation.NewCounters(),
		Metrics:   m,
		Commands:  manager,
		Started:   start,
	}
	router := bot.New(svc)

	client, err := whatsapp.New(holder, sched, events, router.Handle)
	if err != nil {
		return err
	}

	// pending unmutes are re-armed once a socket is usable
	var restore sync.Once
	events.Subscribe(bus.TopicConnected, func(bus.Event) {
		restore.Do(func() {
			n, err := group.RestoreMutes(svc, client)
			if err != nil {
				L_warn("group: failed to restore mutes", "error", err)
				return
			}
			if n > 0 {
				L_info("group: restored scheduled unmutes", "count", n)
			}
		})
	})

	if err := router.StartJobs(); err != nil {
		client.Stop()
		return err
	}
	client.Start()
	L_elapsed(start, "wabot ready", "commands", len(manager.List()), "prefix", svc.Prefix())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		L_info("wabot: shutting down")
	case <-client.Done():
	}

	SetShuttingDown()
	client.Stop()
	events.Wait()

	state, cause := client.State()
	switch state {
	case whatsapp.StateLoggedOut:
		return errors.New("logged out from WhatsApp, run 'wabot link' to pair again")
	case whatsapp.StateStopped:
		if cause != nil {
			return fmt.Errorf("connection stopped: %w", cause)
		}
	}
	return nil
}
