package types

import "testing"

func TestJIDHelpers(t *testing.T) {
	tests := []struct {
		jid, user, norm string
		group           bool
	}{
		{"27825551234@s.whatsapp.net", "27825551234", "27825551234@s.whatsapp.net", false},
		{"27825551234:12@s.whatsapp.net", "27825551234", "27825551234@s.whatsapp.net", false},
		{"120363000000000001@g.us", "120363000000000001", "120363000000000001@g.us", true},
		{"bare", "bare", "bare", false},
	}
	for _, tt := range tests {
		if got := UserPart(tt.jid); got != tt.user {
			t.Errorf("UserPart(%q) = %q, want %q", tt.jid, got, tt.user)
		}
		if got := Normalize(tt.jid); got != tt.norm {
			t.Errorf("Normalize(%q) = %q, want %q", tt.jid, got, tt.norm)
		}
		if got := IsGroup(tt.jid); got != tt.group {
			t.Errorf("IsGroup(%q) = %v, want %v", tt.jid, got, tt.group)
		}
	}
	if !SameUser("1:2@s.whatsapp.net", "1@s.whatsapp.net") || SameUser("", "") {
		t.Error("SameUser mismatch")
	}
	if Mention("27825551234@s.whatsapp.net") != "@27825551234" {
		t.Error("Mention mismatch")
	}
}

func TestGroupInfoAdmins(t *testing.T) {
	g := &GroupInfo{Participants: []Participant{
		{JID: "1@s.whatsapp.net", IsSuperAdmin: true},
		{JID: "2@s.whatsapp.net", IsAdmin: true},
		{JID: "3@s.whatsapp.net"},
	}}
	if !g.IsAdmin("1:5@s.whatsapp.net") || !g.IsAdmin("2@s.whatsapp.net") || g.IsAdmin("3@s.whatsapp.net") {
		t.Error("IsAdmin mismatch")
	}
	if g.IsMember("4@s.whatsapp.net") || !g.IsMember("3@s.whatsapp.net") {
		t.Error("IsMember mismatch")
	}
	if len(g.Admins()) != 2 || len(g.Members()) != 3 {
		t.Errorf("Admins=%v Members=%v", g.Admins(), g.Members())
	}
}

func TestBody(t *testing.T) {
	info := MessageInfo{ID: "A", Chat: "c@g.us"}
	if _, text, ok := Body(&TextMessage{MessageInfo: info, Text: ".ping"}); !ok || text != ".ping" {
		t.Errorf("text body = %q, %v", text, ok)
	}
	if _, text, ok := Body(&MediaMessage{MessageInfo: info, Caption: ".s"}); !ok || text != ".s" {
		t.Errorf("caption body = %q, %v", text, ok)
	}
	if _, _, ok := Body(&CallOffer{}); ok {
		t.Error("call offer has no body")
	}
}
