package commandstest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/roelfdiedericks/wabot/internal/ai"
	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/media"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/moderation"
	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

// Test identities
const (
	OwnerNumber = "27820000000"
	Owner       = OwnerNumber + "@s.whatsapp.net"
	User        = "27831111111@s.whatsapp.net"
	Other       = "27842222222@s.whatsapp.net"
	GroupChat   = "120363000000000001@g.us"
)

// Env is a complete command environment backed by temp files and fakes.
type Env struct {
	T          *testing.T
	Socket     *FakeSocket
	Config     *config.Config
	Services   *commands.Services
	Dispatcher *commands.Dispatcher
	Clock      *cron.ManualClock
	Runner     *FakeRunner
}

// Option adjusts the config before services are built.
type Option func(*config.Config)

// NewEnv builds an Env. register is called with the command manager so
// the test can install the handlers under test.
func NewEnv(t *testing.T, register func(*commands.Manager), opts ...Option) *Env {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.DataDir = dir
	cfg.Owners = []string{OwnerNumber}
	cfg.CommandTimeout = config.Duration(5 * time.Second)
	for _, o := range opts {
		o(cfg)
	}

	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	tmp, err := media.NewTempStore(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("media.NewTempStore: %v", err)
	}
	runner := &FakeRunner{}
	clock := cron.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	m := commands.NewManager()
	svc := &commands.Services{
		Config: config.NewHolder(cfg),
		Store:  st,
		HTTP: upstream.New(upstream.Options{
			Timeout:       time.Duration(cfg.HTTP.Timeout),
			RatePerSecond: 1000,
			Burst:         1000,
			AllowPrivate:  true,
		}),
		Media:     media.NewConverter(media.Options{}, runner, tmp),
		Temp:      tmp,
		AI:        ai.NewService(nil, nil, nil, ai.Options{}),
		Scheduler: cron.New(clock),
		Counters:  moderation.NewCounters(),
		Metrics:   metrics.New(),
		Commands:  m,
		Started:   clock.Now(),
	}
	if register != nil {
		register(m)
	}

	return &Env{
		T:          t,
		Socket:     NewFakeSocket(),
		Config:     cfg,
		Services:   svc,
		Dispatcher: commands.NewDispatcher(svc),
		Clock:      clock,
		Runner:     runner,
	}
}

// WithAPI points an endpoint at a test server URL template.
func WithAPI(name string, ep upstream.Endpoint) Option {
	return func(c *config.Config) {
		c.APIs[name] = ep
	}
}

// Text builds a text message from sender in chat.
func Text(chat, sender, text string) *types.TextMessage {
	return &types.TextMessage{
		MessageInfo: types.MessageInfo{
			ID:        "MSG" + text,
			Chat:      chat,
			Sender:    sender,
			IsGroup:   types.IsGroup(chat),
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Text: text,
	}
}

// Run dispatches a text message and returns whether it was a command.
func (e *Env) Run(chat, sender, text string) bool {
	e.T.Helper()
	return e.Dispatcher.Handle(context.Background(), e.Socket, Text(chat, sender, text))
}

// RunEvent dispatches any event.
func (e *Env) RunEvent(ev types.Event) bool {
	e.T.Helper()
	return e.Dispatcher.Handle(context.Background(), e.Socket, ev)
}

// FakeRunner stands in for ffmpeg/cwebp, writing Output to the last argument.
type FakeRunner struct {
	Output []byte
	Err    error
	Calls  [][]string
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.Calls = append(f.Calls, append([]string{name}, args...))
	if f.Err != nil {
		return f.Err
	}
	out := f.Output
	if out == nil {
		out = []byte("converted")
	}
	return os.WriteFile(args[len(args)-1], out, 0600)
}

// RunMentions dispatches a text message that tags mentions.
func (e *Env) RunMentions(chat, sender, text string, mentions ...string) bool {
	e.T.Helper()
	ev := Text(chat, sender, text)
	ev.Mentions = mentions
	return e.RunEvent(ev)
}

// RunReply dispatches a text message quoting q.
func (e *Env) RunReply(chat, sender, text string, q *types.Quoted) bool {
	e.T.Helper()
	ev := Text(chat, sender, text)
	ev.Quoted = q
	return e.RunEvent(ev)
}
