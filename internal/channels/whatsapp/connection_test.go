package whatsapp

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/roelfdiedericks/wabot/internal/backoff"
	"github.com/roelfdiedericks/wabot/internal/bus"
	"github.com/roelfdiedericks/wabot/internal/cron"
)

type fakeConn struct {
	mu          sync.Mutex
	errs        []error // returned by successive Connect calls, then nil
	connects    int
	disconnects int
}

func (f *fakeConn) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeConn) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type topicLog struct {
	mu     sync.Mutex
	topics []string
}

func (l *topicLog) record(e bus.Event) {
	l.mu.Lock()
	l.topics = append(l.topics, e.Topic)
	l.mu.Unlock()
}

func (l *topicLog) count(topic string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type harness struct {
	conn   *connection
	fake   *fakeConn
	clock  *cron.ManualClock
	sched  *cron.Scheduler
	events *bus.Bus
	log    *topicLog
}

func newHarness(t *testing.T, maxAttempts int, errs ...error) *harness {
	t.Helper()
	clock := cron.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	sched := cron.New(clock)
	b := bus.New()
	log := &topicLog{}
	for _, topic := range []string{bus.TopicConnected, bus.TopicDisconnected, bus.TopicReconnecting, bus.TopicLoggedOut, bus.TopicStopped} {
		b.Subscribe(topic, log.record)
	}
	fake := &fakeConn{errs: errs}
	c := newConnection(fake, sched, b, maxAttempts)
	c.policy = backoff.Policy{Initial: time.Second, Max: time.Minute, Factor: 2}
	return &harness{conn: c, fake: fake, clock: clock, sched: sched, events: b, log: log}
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	s, _ := h.conn.State()
	return s
}

func TestReconnectAfterConnectError(t *testing.T) {
	h := newHarness(t, 0, errors.New("dial tcp: refused"))

	h.conn.start()
	if s := h.state(t); s != StateReconnecting {
		t.Fatalf("state = %s, want reconnecting", s)
	}
	if got := h.sched.Pending(); !slices.Equal(got, []string{"whatsapp reconnect"}) {
		t.Fatalf("pending = %v", got)
	}

	h.clock.Advance(time.Second)
	if h.fake.Connects() != 2 {
		t.Fatalf("connects = %d, want 2", h.fake.Connects())
	}
	h.conn.handle(&events.Connected{})
	if s := h.state(t); s != StateConnected {
		t.Errorf("state = %s, want connected", s)
	}
	if h.conn.attempts != 0 {
		t.Errorf("attempts = %d after connect, want 0", h.conn.attempts)
	}

	h.events.Wait()
	if h.log.count(bus.TopicReconnecting) != 1 || h.log.count(bus.TopicConnected) != 1 {
		t.Errorf("topics = %v", h.log.topics)
	}
}

func TestBackoffGrowsAndGivesUp(t *testing.T) {
	fail := errors.New("no route")
	h := newHarness(t, 2, fail, fail, fail, fail)

	var onlineCalls int
	h.conn.onConnected = func() { onlineCalls++ }

	h.conn.start()
	h.clock.Advance(999 * time.Millisecond)
	if h.fake.Connects() != 1 {
		t.Fatalf("retried before the first delay elapsed")
	}
	h.clock.Advance(time.Millisecond)
	if h.fake.Connects() != 2 {
		t.Fatalf("connects = %d after 1s, want 2", h.fake.Connects())
	}
	// second retry waits 2s
	h.clock.Advance(1500 * time.Millisecond)
	if h.fake.Connects() != 2 {
		t.Fatalf("second retry came too early")
	}
	h.clock.Advance(500 * time.Millisecond)

	if s, err := h.conn.State(); s != StateStopped || err == nil {
		t.Errorf("state = %s (%v), want stopped with a reason", s, err)
	}
	select {
	case <-h.conn.Done():
	default:
		t.Error("Done not closed after giving up")
	}
	if len(h.sched.Pending()) != 0 {
		t.Errorf("pending = %v, want none", h.sched.Pending())
	}
	if onlineCalls != 0 {
		t.Error("onConnected ran without a connection")
	}
	h.events.Wait()
	if h.log.count(bus.TopicStopped) != 1 {
		t.Errorf("topics = %v, want one stopped", h.log.topics)
	}
}

func TestLoggedOutCleansSession(t *testing.T) {
	h := newHarness(t, 0)
	var cleaned int
	h.conn.onLoggedOut = func(ctx context.Context) error {
		cleaned++
		return nil
	}

	h.conn.start()
	h.conn.handle(&events.Connected{})
	h.conn.handle(&events.LoggedOut{Reason: events.ConnectFailureLoggedOut})
	h.conn.handle(&events.Disconnected{})
	h.conn.handle(&events.LoggedOut{})

	if s := h.state(t); s != StateLoggedOut {
		t.Errorf("state = %s, want logged_out", s)
	}
	if cleaned != 1 {
		t.Errorf("session cleanup ran %d times, want 1", cleaned)
	}
	if len(h.sched.Pending()) != 0 {
		t.Error("reconnect scheduled after logout")
	}
	h.events.Wait()
	if h.log.count(bus.TopicLoggedOut) != 1 {
		t.Errorf("topics = %v", h.log.topics)
	}
}

func TestTerminalEvents(t *testing.T) {
	tests := []struct {
		name string
		evt  any
	}{
		{"stream replaced", &events.StreamReplaced{}},
		{"client outdated", &events.ClientOutdated{}},
		{"temporary ban", &events.TemporaryBan{Expire: time.Hour}},
		{"outdated on connect", &events.ConnectFailure{Reason: events.ConnectFailureClientOutdated}},
		{"banned on connect", &events.ConnectFailure{Reason: events.ConnectFailureTempBanned}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.conn.start()
			h.conn.handle(tt.evt)
			h.conn.handle(&events.Disconnected{})

			if s := h.state(t); s != StateStopped {
				t.Errorf("state = %s, want stopped", s)
			}
			if len(h.sched.Pending()) != 0 {
				t.Errorf("pending = %v, want no reconnect", h.sched.Pending())
			}
		})
	}
}

func TestTransientFailuresReconnectOnce(t *testing.T) {
	h := newHarness(t, 0)
	h.conn.start()
	h.conn.handle(&events.Connected{})

	h.conn.handle(&events.ConnectFailure{Reason: events.ConnectFailureReason(503)})
	h.conn.handle(&events.Disconnected{})
	if h.conn.attempts != 1 || len(h.sched.Pending()) != 1 {
		t.Fatalf("attempts = %d pending = %v, want a single retry", h.conn.attempts, h.sched.Pending())
	}

	h.clock.Advance(time.Second)
	h.conn.handle(&events.Connected{})
	h.conn.handle(&events.KeepAliveTimeout{ErrorCount: 1})
	if len(h.sched.Pending()) != 0 {
		t.Error("a single keepalive miss should not reconnect")
	}
	h.conn.handle(&events.KeepAliveTimeout{ErrorCount: keepAliveThreshold})
	if len(h.sched.Pending()) != 1 {
		t.Error("repeated keepalive misses should reconnect")
	}
}

func TestStopCancelsPendingRetry(t *testing.T) {
	h := newHarness(t, 0, errors.New("offline"))
	h.conn.start()
	h.conn.stop(nil)

	h.clock.Advance(time.Minute)
	if h.fake.Connects() != 1 {
		t.Errorf("connects = %d after stop, want 1", h.fake.Connects())
	}
	// the connect error is kept as the last cause
	if s, err := h.conn.State(); s != StateStopped || err == nil {
		t.Errorf("state = %s (%v)", s, err)
	}
	if !h.conn.handle(&events.Connected{}) {
		t.Error("Connected should still be consumed")
	}
	if s := h.state(t); s != StateStopped {
		t.Errorf("state = %s after late Connected, want stopped", s)
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t, 0)
	if h.conn.handle(&events.Message{}) {
		t.Error("message events are not connection events")
	}
}
