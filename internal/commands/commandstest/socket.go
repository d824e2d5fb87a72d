// Package commandstest provides a recording Socket and a ready-made
// command environment for handler tests.
package commandstest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roelfdiedericks/wabot/internal/types"
)

// BotJID is the fake socket's own JID.
const BotJID = "27000000001@s.whatsapp.net"

// Sent is one recorded Send call.
type Sent struct {
	Chat string
	Out  types.Outgoing
}

// ParticipantUpdate is one recorded UpdateParticipants call.
type ParticipantUpdate struct {
	Chat   string
	Users  []string
	Action types.ParticipantAction
}

// BlockUpdate is one recorded UpdateBlockStatus call.
type BlockUpdate struct {
	JID   string
	Block bool
}

// Reaction is one recorded React call.
type Reaction struct {
	Target types.MessageKey
	Emoji  string
}

// FakeSocket records every call. Set the exported fields to script answers.
type FakeSocket struct {
	mu sync.Mutex

	Own      string
	Groups   map[string]*types.GroupInfo
	Media    []byte // returned by Download
	Link     string
	SendErr  error
	AdminErr error // returned by group mutations

	Sent         []Sent
	Reactions    []Reaction
	Deleted      []types.MessageKey
	Participants []ParticipantUpdate
	Announce     []bool
	Blocks       []BlockUpdate
	Rejected     []string // call IDs
	LinkResets   int
	nextID       int
}

// NewFakeSocket returns a socket whose own JID is BotJID.
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{Own: BotJID, Groups: make(map[string]*types.GroupInfo), Link: "https://chat.whatsapp.com/FAKE"}
}

// AddGroup registers a group. The bot is added as admin when botAdmin is set.
func (f *FakeSocket) AddGroup(jid string, botAdmin bool, members ...types.Participant) *types.GroupInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &types.GroupInfo{JID: jid, Name: "Test group", Participants: members}
	g.Participants = append(g.Participants, types.Participant{JID: f.Own, IsAdmin: botAdmin})
	f.Groups[jid] = g
	return g
}

func (f *FakeSocket) Send(ctx context.Context, chat string, out types.Outgoing) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.Sent = append(f.Sent, Sent{Chat: chat, Out: out})
	f.nextID++
	return fmt.Sprintf("SENT%d", f.nextID), nil
}

func (f *FakeSocket) React(ctx context.Context, target types.MessageKey, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reactions = append(f.Reactions, Reaction{Target: target, Emoji: emoji})
	return nil
}

func (f *FakeSocket) Delete(ctx context.Context, target types.MessageKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AdminErr != nil {
		return f.AdminErr
	}
	f.Deleted = append(f.Deleted, target)
	return nil
}

func (f *FakeSocket) Download(ctx context.Context, ref *types.MediaRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Media == nil {
		return nil, fmt.Errorf("no media scripted")
	}
	return f.Media, nil
}

func (f *FakeSocket) GroupInfo(ctx context.Context, chat string) (*types.GroupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Groups[chat]
	if !ok {
		return nil, fmt.Errorf("unknown group %s", chat)
	}
	cp := *g
	cp.Participants = append([]types.Participant(nil), g.Participants...)
	return &cp, nil
}

func (f *FakeSocket) UpdateParticipants(ctx context.Context, chat string, users []string, action types.ParticipantAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AdminErr != nil {
		return f.AdminErr
	}
	f.Participants = append(f.Participants, ParticipantUpdate{Chat: chat, Users: users, Action: action})
	return nil
}

func (f *FakeSocket) SetAnnounce(ctx context.Context, chat string, announce bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AdminErr != nil {
		return f.AdminErr
	}
	f.Announce = append(f.Announce, announce)
	if g, ok := f.Groups[chat]; ok {
		g.Announce = announce
	}
	return nil
}

func (f *FakeSocket) InviteLink(ctx context.Context, chat string, reset bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AdminErr != nil {
		return "", f.AdminErr
	}
	if reset {
		f.LinkResets++
	}
	return f.Link, nil
}

func (f *FakeSocket) UpdateBlockStatus(ctx context.Context, jid string, block bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocks = append(f.Blocks, BlockUpdate{JID: jid, Block: block})
	return nil
}

func (f *FakeSocket) RejectCall(ctx context.Context, from, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rejected = append(f.Rejected, callID)
	return nil
}

func (f *FakeSocket) OwnJID() string {
	return f.Own
}

// Texts returns the text (or media caption) of every sent message.
func (f *FakeSocket) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Sent))
	for _, s := range f.Sent {
		if s.Out.Media != nil {
			out = append(out, s.Out.Media.Caption)
			continue
		}
		out = append(out, s.Out.Text)
	}
	return out
}

// LastText returns the most recent sent text, or "".
func (f *FakeSocket) LastText() string {
	texts := f.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// SentCount returns the number of sent messages.
func (f *FakeSocket) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// LastSent returns the most recent Send call.
func (f *FakeSocket) LastSent() (Sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return Sent{}, false
	}
	return f.Sent[len(f.Sent)-1], true
}

// Contains reports whether any sent text contains substr.
func (f *FakeSocket) Contains(substr string) bool {
	for _, t := range f.Texts() {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}
