// Package whatsapp owns the whatsmeow client: session store, connection
// lifecycle, event conversion and the types.Socket implementation. No
// other package imports whatsmeow.
package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"github.com/roelfdiedericks/wabot/internal/bus"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/metrics"
	"github.com/roelfdiedericks/wabot/internal/paths"
	itypes "github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// ErrNotPaired is returned by New when no device is linked yet.
var ErrNotPaired = errors.New("no whatsapp device paired, run 'wabot link' first")

// Handler receives every converted inbound event.
type Handler func(ctx context.Context, sock itypes.Socket, ev itypes.Event)

// Client is the WhatsApp connection. It implements types.Socket.
type Client struct {
	client *whatsmeow.Client
	db     *sql.DB
	conn   *connection
	cfg    *config.Holder

	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// openStore opens (and migrates) the whatsmeow session database.
func openStore(ctx context.Context, dataDir string) (*sql.DB, *sqlstore.Container, error) {
	dbPath := paths.SessionDBPath(dataDir)
	if err := paths.EnsureParentDir(dbPath); err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open whatsapp db: %w", err)
	}
	container := sqlstore.NewWithDB(db, "sqlite3", newLogger("store"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to upgrade whatsapp store: %w", err)
	}
	return db, container, nil
}

// New opens the session store and prepares a client for the paired device.
// Reconnect timers run on sched; lifecycle changes are published on events.
func New(cfg *config.Holder, sched *cron.Scheduler, events *bus.Bus, handler Handler) (*Client, error) {
	c := cfg.Get()
	db, container, err := openStore(context.Background(), c.DataDir)
	if err != nil {
		return nil, err
	}
	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get whatsapp device: %w", err)
	}
	if device == nil || device.ID == nil {
		db.Close()
		return nil, ErrNotPaired
	}

	wa := whatsmeow.NewClient(device, newLogger("client"))
	wa.EnableAutoReconnect = false

	ctx, cancel := context.WithCancel(context.Background())
	b := &Client{
		client:  wa,
		db:      db,
		cfg:     cfg,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
	b.conn = newConnection(wa, sched, events, c.WhatsApp.MaxReconnectAttempts)
	b.conn.onLoggedOut = func(ctx context.Context) error {
		return wa.Store.Delete(ctx)
	}
	b.conn.onConnected = b.markOnline
	wa.AddEventHandler(b.handleEvent)
	return b, nil
}

// Start begins connecting. Connection problems are handled by the
// reconnect loop and reported on the bus.
func (b *Client) Start() {
	L_info("whatsapp: starting", "jid", b.OwnJID())
	b.conn.start()
}

// Stop disconnects, cancels any pending reconnect and waits for in-flight
// handlers.
func (b *Client) Stop() {
	b.conn.stop(nil)
	b.cancel()
	b.wg.Wait()
	if err := b.db.Close(); err != nil {
		L_warn("whatsapp: close session db", "error", err)
	}
}

// Done is closed once the connection has stopped or been logged out.
func (b *Client) Done() <-chan struct{} {
	return b.conn.Done()
}

// State returns the lifecycle state and its cause.
func (b *Client) State() (State, error) {
	return b.conn.State()
}

func (b *Client) markOnline() {
	if !b.cfg.Get().WhatsApp.AutoOnline {
		return
	}
	if err := b.client.SendPresence(b.ctx, types.PresenceAvailable); err != nil {
		L_warn("whatsapp: failed to set presence", "error", err)
	}
}

// handleEvent is the whatsmeow event handler. Connection events drive the
// lifecycle; everything else is converted and handed to the router on its
// own goroutine so a slow command never blocks the event stream.
func (b *Client) handleEvent(evt any) {
	if b.conn.handle(evt) {
		return
	}
	ev := b.converter(b.ctx).convert(evt)
	if ev == nil {
		return
	}
	metrics.MetricInc("whatsapp", "events")
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handler(b.ctx, b, ev)
	}()
}

func (b *Client) converter(ctx context.Context) converter {
	return converter{ctx: ctx, lids: b.client.Store.LIDs}
}
