package cron

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAfterFiresOnlyWhenDue(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	s.After(10*time.Minute, "unmute", func() { fired++ })

	clock.Advance(9 * time.Minute)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	clock.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	clock.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("one-shot fired again: %d", fired)
	}
	if len(s.Pending()) != 0 {
		t.Errorf("Pending() = %v, want empty", s.Pending())
	}
}

func TestCancel(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := false
	h := s.After(time.Minute, "unmute", func() { fired = true })
	if !h.Cancel() {
		t.Fatal("Cancel() = false for pending task")
	}
	if h.Cancel() {
		t.Error("second Cancel() should be false")
	}
	clock.Advance(time.Hour)
	if fired {
		t.Error("cancelled task fired")
	}
}

func TestAtInThePastFiresImmediately(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := false
	s.At(epoch.Add(-time.Hour), "overdue", func() { fired = true })
	clock.Advance(0)
	if !fired {
		t.Error("overdue task did not fire")
	}
}

func TestEvery(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	n := 0
	h, err := s.Every("@every 10m", "media-cleanup", func() { n++ })
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	clock.Advance(35 * time.Minute)
	if n != 3 {
		t.Fatalf("ran %d times, want 3", n)
	}
	h.Cancel()
	clock.Advance(time.Hour)
	if n != 3 {
		t.Errorf("ran after cancel: %d", n)
	}

	if _, err := s.Every("not a schedule", "bad", func() {}); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestPanicIsContained(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	after := false
	s.After(time.Second, "boom", func() { panic("x") })
	s.After(2*time.Second, "ok", func() { after = true })
	clock.Advance(time.Minute)
	if !after {
		t.Error("task after a panicking one did not run")
	}
}

func TestStopCancelsEverything(t *testing.T) {
	clock := NewManualClock(epoch)
	s := New(clock)

	fired := 0
	s.After(time.Minute, "a", func() { fired++ })
	if _, err := s.Every("@hourly", "b", func() { fired++ }); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.After(time.Second, "late", func() { fired++ })
	clock.Advance(24 * time.Hour)
	if fired != 0 {
		t.Errorf("fired = %d after Stop", fired)
	}
	if clock.Pending() != 0 {
		t.Errorf("clock still has %d timers", clock.Pending())
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"10m", 10 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"2d", 48 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"15", 15 * time.Minute, false},
		{"", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"+5m", now.Add(5 * time.Minute)},
		{"18:30", time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)},
		{"07:00", time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)},
		{"2025-04-01T00:00:00Z", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseAt(tt.in, now)
		if err != nil {
			t.Errorf("ParseAt(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseAt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseAt("whenever", now); err == nil {
		t.Error("ParseAt accepted garbage")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{10 * time.Minute, "10m 0s"},
		{3*time.Hour + 5*time.Second, "3h 0m 5s"},
		{49 * time.Hour, "2d 1h 0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
