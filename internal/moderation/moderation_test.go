package moderation

import (
	"testing"

	"github.com/roelfdiedericks/wabot/internal/store"
)

func TestHasLink(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"join https://chat.whatsapp.com/AbC123xyz", true},
		{"chat.whatsapp.com/Invite42", true},
		{"see http://example.com/page", true},
		{"visit www.example.org now", true},
		{"HTTPS://EXAMPLE.COM", true},
		{"no links here, just www and http words", false},
		{"email me at a.b@c.d", false},
	}
	for _, tt := range tests {
		if got := HasLink(tt.text); got != tt.want {
			t.Errorf("HasLink(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMassMentionThreshold(t *testing.T) {
	tests := []struct{ members, want int }{
		{0, 5}, {4, 5}, {10, 5}, {11, 6}, {40, 20}, {257, 129},
	}
	for _, tt := range tests {
		if got := MassMentionThreshold(tt.members); got != tt.want {
			t.Errorf("MassMentionThreshold(%d) = %d, want %d", tt.members, got, tt.want)
		}
	}
}

func TestIsMassMention(t *testing.T) {
	jids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = string(rune('1'+i)) + "000000000@s.whatsapp.net"
		}
		return out
	}
	five := jids(5)

	tests := []struct {
		name     string
		text     string
		mentions []string
		members  int
		want     bool
	}{
		{"no mentions", "hello", nil, 10, false},
		{"one visible mention", "hi @1000000000", five[:1], 10, false},
		{"two visible mentions", "@1000000000 @2000000000", five[:2], 10, false},
		{"hidden tag", "meeting at 5", five[:2], 10, true},
		{"at threshold", "@1000000000 @2000000000 @3000000000 @4000000000 @5000000000", five, 10, true},
		{"half of big group", "@1000000000 @2000000000 @3000000000 @4000000000 @5000000000", five, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMassMention(tt.text, tt.mentions, tt.members); got != tt.want {
				t.Errorf("IsMassMention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchBadword(t *testing.T) {
	words := []string{"darn", "Heck"}
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"oh darn it", "darn", true},
		{"HECK!", "heck", true},
		{"darnit is fine", "", false},
		{"clean text", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchBadword(tt.text, words)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchBadword(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetectOrder(t *testing.T) {
	s := store.ChatSettings{
		AntiLink:    store.FeatureConfig{Enabled: true, Action: store.ActionKick},
		AntiBadword: store.BadwordConfig{FeatureConfig: store.FeatureConfig{Enabled: true}, Words: []string{"spam"}},
	}
	hit, ok := Detect(s, "spam https://x.example", nil, 10)
	if !ok || hit.Feature != FeatureAntiLink || hit.Config.Action != store.ActionKick {
		t.Fatalf("Detect() = %+v, %v", hit, ok)
	}
	hit, ok = Detect(s, "pure spam", nil, 10)
	if !ok || hit.Feature != FeatureAntiBadword || hit.Detail != "spam" {
		t.Fatalf("Detect() = %+v, %v", hit, ok)
	}
	if _, ok := Detect(store.ChatSettings{}, "https://x.example", nil, 10); ok {
		t.Error("disabled features should not match")
	}
}

func TestApplyWarnKicksOnceAtLimit(t *testing.T) {
	c := NewCounters()
	cfg := store.FeatureConfig{Enabled: true, Action: store.ActionWarn, Limit: 3}
	const chat, user = "1@g.us", "27820000000@s.whatsapp.net"

	kicks := 0
	for i := 1; i <= 3; i++ {
		v := c.Apply(FeatureAntiLink, chat, user, cfg)
		if !v.Delete {
			t.Errorf("violation %d: message not deleted", i)
		}
		if v.Kick {
			kicks++
		}
		if i < 3 && (!v.Warn || v.Count != i) {
			t.Errorf("violation %d: verdict %+v", i, v)
		}
	}
	if kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicks)
	}
	if n := c.Get(FeatureAntiLink, chat, user); n != 0 {
		t.Errorf("counter = %d after kick, want 0", n)
	}

	// device suffix does not create a separate counter
	c.Apply(FeatureAntiLink, chat, "27820000000:3@s.whatsapp.net", cfg)
	if n := c.Get(FeatureAntiLink, chat, user); n != 1 {
		t.Errorf("counter = %d, want 1", n)
	}
}

func TestApplyActions(t *testing.T) {
	c := NewCounters()
	tests := []struct {
		action string
		want   Verdict
	}{
		{store.ActionDelete, Verdict{Delete: true, Limit: 3}},
		{"", Verdict{Delete: true, Limit: 3}},
		{store.ActionKick, Verdict{Delete: true, Kick: true, Limit: 3}},
	}
	for _, tt := range tests {
		got := c.Apply(FeatureAntiTag, "c", "u", store.FeatureConfig{Enabled: true, Action: tt.action})
		if got != tt.want {
			t.Errorf("action %q: got %+v, want %+v", tt.action, got, tt.want)
		}
	}
	if c.Get(FeatureAntiTag, "c", "u") != 0 {
		t.Error("delete/kick must not count")
	}
}

func TestResetUser(t *testing.T) {
	c := NewCounters()
	c.Incr(FeatureAntiLink, "c", "u@s.whatsapp.net")
	c.Incr(FeatureWarn, "c", "u@s.whatsapp.net")
	c.Incr(FeatureWarn, "other", "u@s.whatsapp.net")

	counts := c.UserCounts("c", "u@s.whatsapp.net")
	if len(counts) != 2 || counts[FeatureWarn] != 1 {
		t.Errorf("UserCounts = %v", counts)
	}
	if n := c.ResetUser("c", "u@s.whatsapp.net"); n != 2 {
		t.Errorf("ResetUser cleared %d, want 2", n)
	}
	if c.Get(FeatureWarn, "other", "u@s.whatsapp.net") != 1 {
		t.Error("other chat's counter was cleared")
	}
}
