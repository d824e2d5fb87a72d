package types

import "time"

// MediaKind classifies media attachments
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
)

// MediaRef points at downloadable media on an inbound message.
type MediaRef struct {
	Kind     MediaKind
	MIME     string
	Size     uint64
	Seconds  uint32
	Animated bool
	FileName string

	// Handle is owned by the Socket implementation and passed back to Download.
	Handle any
}

// Quoted is the message an inbound message replies to.
type Quoted struct {
	ID     string
	Sender string
	Text   string
	Media  *MediaRef
}

// MessageInfo is the envelope shared by every inbound message.
type MessageInfo struct {
	ID        string
	Chat      string
	Sender    string
	PushName  string
	IsGroup   bool
	FromMe    bool
	Timestamp time.Time
	Mentions  []string
	Quoted    *Quoted
}

// Key identifies the message for reactions and deletion.
func (m MessageInfo) Key() MessageKey {
	return MessageKey{Chat: m.Chat, ID: m.ID, Sender: m.Sender, FromMe: m.FromMe}
}

// MessageKey identifies one message in a chat.
type MessageKey struct {
	Chat   string
	ID     string
	Sender string
	FromMe bool
}

// Event is the sum type of everything the router handles:
// *TextMessage, *MediaMessage, *ReactionEvent, *CallOffer, *GroupParticipants.
type Event interface {
	isEvent()
}

// TextMessage is a plain or extended text message.
type TextMessage struct {
	MessageInfo
	Text string
}

// MediaMessage carries an attachment and its caption.
type MediaMessage struct {
	MessageInfo
	Caption string
	Media   MediaRef
}

// ReactionEvent is an emoji reaction to an earlier message.
type ReactionEvent struct {
	MessageInfo
	TargetID string
	Emoji    string // empty when a reaction is removed
}

// CallOffer is an incoming voice or video call.
type CallOffer struct {
	CallID    string
	From      string
	Timestamp time.Time
	Video     bool
	Group     bool
}

// GroupParticipants reports membership changes in a group.
type GroupParticipants struct {
	Chat      string
	Actor     string
	Joined    []string
	Left      []string
	Promoted  []string
	Demoted   []string
	Timestamp time.Time
}

func (*TextMessage) isEvent()       {}
func (*MediaMessage) isEvent()      {}
func (*ReactionEvent) isEvent()     {}
func (*CallOffer) isEvent()         {}
func (*GroupParticipants) isEvent() {}

// Body returns the envelope and the text that may carry a command: the text
// of a TextMessage or the caption of a MediaMessage.
func Body(ev Event) (MessageInfo, string, bool) {
	switch m := ev.(type) {
	case *TextMessage:
		return m.MessageInfo, m.Text, true
	case *MediaMessage:
		return m.MessageInfo, m.Caption, true
	}
	return MessageInfo{}, "", false
}
