package types

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrForbidden is returned (wrapped) by a Socket when WhatsApp refuses an
// operation for lack of rights, typically because the bot is not a group admin.
var ErrForbidden = errors.New("forbidden by whatsapp")

// OutgoingMedia is an attachment to send.
type OutgoingMedia struct {
	Kind     MediaKind
	Data     []byte
	MIME     string
	FileName string
	Caption  string
	Animated bool
	PTT      bool
}

// Outgoing is one message to send. Media nil means a text message.
type Outgoing struct {
	Text     string
	Mentions []string
	Quote    *MessageInfo
	Media    *OutgoingMedia
}

// ParticipantAction is a group membership change
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

// Participant is one group member.
type Participant struct {
	JID          string
	IsAdmin      bool
	IsSuperAdmin bool
}

// GroupInfo is the metadata the handlers use.
type GroupInfo struct {
	JID          string
	Name         string
	Topic        string
	Owner        string
	Announce     bool
	Created      time.Time
	Participants []Participant
}

// IsAdmin reports whether jid is an admin (or the creator) of the group.
func (g *GroupInfo) IsAdmin(jid string) bool {
	for _, p := range g.Participants {
		if SameUser(p.JID, jid) {
			return p.IsAdmin || p.IsSuperAdmin
		}
	}
	return false
}

// IsMember reports whether jid is in the group.
func (g *GroupInfo) IsMember(jid string) bool {
	return slices.ContainsFunc(g.Participants, func(p Participant) bool { return SameUser(p.JID, jid) })
}

// Admins returns the JIDs of all admins.
func (g *GroupInfo) Admins() []string {
	var out []string
	for _, p := range g.Participants {
		if p.IsAdmin || p.IsSuperAdmin {
			out = append(out, p.JID)
		}
	}
	return out
}

// Members returns every participant JID.
func (g *GroupInfo) Members() []string {
	out := make([]string, 0, len(g.Participants))
	for _, p := range g.Participants {
		out = append(out, p.JID)
	}
	return out
}

// Socket is everything the bot may do on WhatsApp.
type Socket interface {
	Send(ctx context.Context, chat string, out Outgoing) (string, error)
	React(ctx context.Context, target MessageKey, emoji string) error
	Delete(ctx context.Context, target MessageKey) error
	Download(ctx context.Context, ref *MediaRef) ([]byte, error)

	GroupInfo(ctx context.Context, chat string) (*GroupInfo, error)
	UpdateParticipants(ctx context.Context, chat string, users []string, action ParticipantAction) error
	SetAnnounce(ctx context.Context, chat string, announce bool) error
	InviteLink(ctx context.Context, chat string, reset bool) (string, error)

	UpdateBlockStatus(ctx context.Context, jid string, block bool) error
	RejectCall(ctx context.Context, from, callID string) error

	// OwnJID is the bot's own user JID ("" before login).
	OwnJID() string
}
