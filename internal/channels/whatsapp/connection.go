package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/roelfdiedericks/wabot/internal/backoff"
	"github.com/roelfdiedericks/wabot/internal/bus"
	"github.com/roelfdiedericks/wabot/internal/cron"
	"github.com/roelfdiedericks/wabot/internal/metrics"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// State is the connection lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
	StateLoggedOut    State = "logged_out"
)

// keepAliveThreshold is how many consecutive keepalive failures force a
// reconnect; whatsmeow recovers from fewer on its own.
const keepAliveThreshold = 3

// conn is the part of *whatsmeow.Client the lifecycle drives.
type conn interface {
	Connect() error
	Disconnect()
}

// ReconnectInfo is published with bus.TopicReconnecting.
type ReconnectInfo struct {
	Attempt int
	Delay   time.Duration
}

// connection runs the reconnect state machine. Timers come from the shared
// scheduler so tests can drive them with a manual clock.
type connection struct {
	conn        conn
	sched       *cron.Scheduler
	events      *bus.Bus
	policy      backoff.Policy
	maxAttempts int // 0 = unlimited

	// onLoggedOut removes the stored device; onConnected marks presence.
	onLoggedOut func(ctx context.Context) error
	onConnected func()

	mu       sync.Mutex
	state    State
	attempts int
	retry    *cron.Handle
	lastErr  error
	done     chan struct{}
}

func newConnection(c conn, sched *cron.Scheduler, events *bus.Bus, maxAttempts int) *connection {
	return &connection{
		conn:        c,
		sched:       sched,
		events:      events,
		policy:      backoff.Reconnect(),
		maxAttempts: maxAttempts,
		state:       StateIdle,
		done:        make(chan struct{}),
	}
}

// State returns the current state and the error that caused it, if any.
func (c *connection) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastErr
}

// Done is closed when the connection reaches a terminal state.
func (c *connection) Done() <-chan struct{} {
	return c.done
}

// start makes the first connection attempt. A failing attempt schedules a
// retry rather than returning an error.
func (c *connection) start() {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.dial()
}

func (c *connection) dial() {
	L_info("whatsapp: connecting")
	if err := c.conn.Connect(); err != nil {
		L_warn("whatsapp: connect failed", "error", err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.scheduleReconnect()
	}
}

// handle consumes connection events. It reports whether evt was one.
func (c *connection) handle(evt any) bool {
	switch v := evt.(type) {
	case *events.Connected:
		c.mu.Lock()
		if c.terminal() {
			c.mu.Unlock()
			return true
		}
		c.state = StateConnected
		c.attempts = 0
		c.lastErr = nil
		c.mu.Unlock()
		L_info("whatsapp: connected")
		c.publish(bus.TopicConnected, nil)
		if c.onConnected != nil {
			c.onConnected()
		}

	case *events.Disconnected:
		if c.isTerminal() {
			return true
		}
		L_warn("whatsapp: disconnected from server")
		c.publish(bus.TopicDisconnected, nil)
		c.scheduleReconnect()

	case *events.KeepAliveTimeout:
		L_warn("whatsapp: keepalive timeout", "errors", v.ErrorCount, "lastSuccess", v.LastSuccess)
		if v.ErrorCount >= keepAliveThreshold && !c.isTerminal() {
			c.conn.Disconnect()
			c.publish(bus.TopicDisconnected, nil)
			c.scheduleReconnect()
		}

	case *events.KeepAliveRestored:
		L_info("whatsapp: keepalive restored")

	case *events.LoggedOut:
		c.loggedOut(fmt.Errorf("logged out: %s", v.Reason))

	case *events.StreamReplaced:
		c.stop(fmt.Errorf("stream replaced: another client took over this session"))

	case *events.ClientOutdated:
		c.stop(fmt.Errorf("client outdated: update wabot"))

	case *events.TemporaryBan:
		c.stop(fmt.Errorf("temporary ban (%s), expires in %s", v.Code, v.Expire))

	case *events.ConnectFailure:
		switch {
		case v.Reason.IsLoggedOut():
			c.loggedOut(fmt.Errorf("connect failure: %s", v.Reason))
		case v.Reason == events.ConnectFailureClientOutdated, v.Reason == events.ConnectFailureTempBanned:
			c.stop(fmt.Errorf("connect failure: %s %s", v.Reason, v.Message))
		default:
			L_warn("whatsapp: connect failure", "reason", v.Reason, "message", v.Message)
			c.mu.Lock()
			c.lastErr = fmt.Errorf("connect failure: %s", v.Reason)
			c.mu.Unlock()
			c.scheduleReconnect()
		}

	default:
		return false
	}
	return true
}

// scheduleReconnect arms one retry, unless one is already pending or the
// attempt budget is spent.
func (c *connection) scheduleReconnect() {
	c.mu.Lock()
	if c.terminal() || (c.retry != nil && !c.retry.Cancelled()) {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if c.maxAttempts > 0 && attempt > c.maxAttempts {
		c.mu.Unlock()
		c.stop(fmt.Errorf("gave up after %d reconnect attempts", c.maxAttempts))
		return
	}
	delay := c.policy.Delay(attempt)
	c.state = StateReconnecting
	c.retry = c.sched.After(delay, "whatsapp reconnect", c.reconnect)
	c.mu.Unlock()

	metrics.MetricInc("whatsapp", "reconnect")
	L_info("whatsapp: reconnecting", "attempt", attempt, "delay", delay)
	c.publish(bus.TopicReconnecting, ReconnectInfo{Attempt: attempt, Delay: delay})
}

func (c *connection) reconnect() {
	c.mu.Lock()
	c.retry = nil
	if c.terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.conn.Disconnect()
	c.dial()
}

func (c *connection) loggedOut(reason error) {
	if !c.finish(StateLoggedOut, reason) {
		return
	}
	L_error("whatsapp: logged out, run 'wabot link' to pair again", "reason", reason)
	if c.onLoggedOut != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.onLoggedOut(ctx); err != nil {
			L_error("whatsapp: session cleanup failed", "error", err)
		}
	}
	c.publish(bus.TopicLoggedOut, reason.Error())
}

// stop ends the connection for good. A nil reason is an operator stop.
func (c *connection) stop(reason error) {
	if !c.finish(StateStopped, reason) {
		return
	}
	if reason != nil {
		L_error("whatsapp: stopped", "reason", reason)
	} else {
		L_info("whatsapp: stopped")
	}
	c.publish(bus.TopicStopped, reason)
}

// finish moves to a terminal state once, cancelling any pending retry and
// dropping the socket. It reports whether this call did the transition.
func (c *connection) finish(state State, reason error) bool {
	c.mu.Lock()
	if c.terminal() {
		c.mu.Unlock()
		return false
	}
	c.state = state
	if reason != nil {
		c.lastErr = reason
	}
	if c.retry != nil {
		c.retry.Cancel()
		c.retry = nil
	}
	close(c.done)
	c.mu.Unlock()

	c.conn.Disconnect()
	return true
}

func (c *connection) terminal() bool {
	return c.state == StateStopped || c.state == StateLoggedOut
}

func (c *connection) isTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal()
}

func (c *connection) publish(topic string, data any) {
	if c.events != nil {
		c.events.PublishFrom(topic, data, "whatsapp")
	}
}
