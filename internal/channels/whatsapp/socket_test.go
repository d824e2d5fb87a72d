package whatsapp

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"

	itypes "github.com/roelfdiedericks/wabot/internal/types"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{"short", "short", 10, []string{"short"}},
		{"at newline", "aaaaaaaa\nbbbbbbbb", 10, []string{"aaaaaaaa\n", "bbbbbbbb"}},
		{"hard split", strings.Repeat("x", 25), 10, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}},
		{"two-byte runes", "aééééé", 4, []string{"aé", "éé", "éé"}},
		{"emoji", "ok 👍👍", 5, []string{"ok ", "👍", "👍"}},
		{"limit below one rune", "👍👍", 2, []string{"👍", "👍"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMessage(tt.text, tt.maxLen)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("splitMessage(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
			for _, chunk := range got {
				if !utf8.ValidString(chunk) {
					t.Errorf("chunk %q is not valid UTF-8", chunk)
				}
			}
			if strings.Join(got, "") != tt.text {
				t.Error("split lost text")
			}
		})
	}
}

func TestContextInfo(t *testing.T) {
	if ci := contextInfo(itypes.Outgoing{Text: "plain"}); ci != nil {
		t.Errorf("plain text got context %+v", ci)
	}
	if m := textMessage("plain", nil); m.GetConversation() != "plain" {
		t.Errorf("plain message = %+v", m)
	}

	out := itypes.Outgoing{
		Text:     "hi @27842222222",
		Mentions: []string{"27842222222@s.whatsapp.net"},
		Quote:    &itypes.MessageInfo{ID: "Q1", Sender: "27831111111@s.whatsapp.net"},
	}
	m := textMessage(out.Text, contextInfo(out))
	ci := m.GetExtendedTextMessage().GetContextInfo()
	if m.GetExtendedTextMessage().GetText() != out.Text {
		t.Errorf("text = %q", m.GetExtendedTextMessage().GetText())
	}
	if ci.GetStanzaID() != "Q1" || ci.GetParticipant() != "27831111111@s.whatsapp.net" || len(ci.GetMentionedJID()) != 1 {
		t.Errorf("context = %+v", ci)
	}
}

func TestBuildMediaMessage(t *testing.T) {
	resp := &whatsmeow.UploadResponse{URL: "https://mmg.example/x", DirectPath: "/x"}
	tests := []struct {
		media *itypes.OutgoingMedia
		check func(t *testing.T, m *itypes.OutgoingMedia, resp *whatsmeow.UploadResponse)
	}{
		{
			media: &itypes.OutgoingMedia{Kind: itypes.MediaSticker, Data: []byte("RIFF"), MIME: "image/webp", Animated: true},
			check: func(t *testing.T, m *itypes.OutgoingMedia, resp *whatsmeow.UploadResponse) {
				msg := buildMediaMessage(m, resp, nil).GetStickerMessage()
				if msg == nil || !msg.GetIsAnimated() || msg.GetMimetype() != "image/webp" || msg.GetFileLength() != 4 || msg.GetURL() != resp.URL {
					t.Errorf("sticker = %+v", msg)
				}
			},
		},
		{
			media: &itypes.OutgoingMedia{Kind: itypes.MediaAudio, Data: []byte("ID3"), MIME: "audio/mpeg"},
			check: func(t *testing.T, m *itypes.OutgoingMedia, resp *whatsmeow.UploadResponse) {
				msg := buildMediaMessage(m, resp, nil).GetAudioMessage()
				if msg == nil || msg.GetPTT() || msg.GetMimetype() != "audio/mpeg" {
					t.Errorf("audio = %+v", msg)
				}
			},
		},
		{
			media: &itypes.OutgoingMedia{Kind: itypes.MediaDocument, Data: []byte("%PDF"), MIME: "application/pdf", Caption: "doc"},
			check: func(t *testing.T, m *itypes.OutgoingMedia, resp *whatsmeow.UploadResponse) {
				msg := buildMediaMessage(m, resp, nil).GetDocumentMessage()
				if msg == nil || msg.GetFileName() != "file" || msg.GetCaption() != "doc" {
					t.Errorf("document = %+v", msg)
				}
			},
		},
	}
	for _, tt := range tests {
		tt.check(t, tt.media, resp)
	}

	if mediaType(itypes.MediaSticker) != whatsmeow.MediaImage || mediaType(itypes.MediaVideo) != whatsmeow.MediaVideo {
		t.Error("unexpected upload bucket")
	}
}

func TestMapErr(t *testing.T) {
	if err := mapErr(whatsmeow.ErrIQForbidden); !errors.Is(err, itypes.ErrForbidden) {
		t.Errorf("forbidden IQ mapped to %v", err)
	}
	other := errors.New("timeout")
	if err := mapErr(other); err != other {
		t.Errorf("unrelated error changed to %v", err)
	}
	if mapErr(nil) != nil {
		t.Error("nil mapped to an error")
	}
}

func TestKeyJIDs(t *testing.T) {
	chat, sender, err := keyJIDs(itypes.MessageKey{Chat: "120363000000000001@g.us", ID: "X", Sender: "27831111111@s.whatsapp.net"})
	if err != nil {
		t.Fatal(err)
	}
	if chat.Server != types.GroupServer || sender.User != "27831111111" {
		t.Errorf("chat = %s sender = %s", chat, sender)
	}
	_, sender, _ = keyJIDs(itypes.MessageKey{Chat: "120363000000000001@g.us", ID: "X", Sender: "27831111111@s.whatsapp.net", FromMe: true})
	if !sender.IsEmpty() {
		t.Errorf("own message sender = %s, want empty", sender)
	}
}

func TestConvertGroup(t *testing.T) {
	g := converter{}.group(&types.GroupInfo{
		JID:       groupJID,
		OwnerJID:  senderJID,
		GroupName: types.GroupName{Name: "Braai club"},
		Participants: []types.GroupParticipant{
			{JID: senderJID, IsSuperAdmin: true},
			{JID: types.NewJID("249786758348836", types.HiddenUserServer), PhoneNumber: types.NewJID("27842222222", types.DefaultUserServer)},
		},
	})
	if g.Name != "Braai club" || g.Owner != "27831111111@s.whatsapp.net" || len(g.Participants) != 2 {
		t.Fatalf("group = %+v", g)
	}
	if !g.IsAdmin("27831111111@s.whatsapp.net") {
		t.Error("super admin not reported as admin")
	}
	if g.Participants[1].JID != "27842222222@s.whatsapp.net" {
		t.Errorf("LID participant = %q, want phone-number JID", g.Participants[1].JID)
	}
}
