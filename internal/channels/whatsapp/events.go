package whatsapp

import (
	"context"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	itypes "github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// pnResolver maps hidden-user (LID) addresses to phone-number JIDs.
// whatsmeow's store.LIDStore satisfies it.
type pnResolver interface {
	GetPNForLID(ctx context.Context, lid types.JID) (types.JID, error)
}

// converter maps whatsmeow events to the router's event types. Every user
// address leaving it is a phone-number JID whenever one is known, so ban,
// sudo and admin checks compare like with like.
type converter struct {
	ctx  context.Context
	lids pnResolver // nil: only addresses carried on the event are used
}

// convert returns the router event for evt, or nil for events the bot ignores.
func (c converter) convert(evt any) itypes.Event {
	switch v := evt.(type) {
	case *events.Message:
		return c.message(v)
	case *events.CallOffer:
		return c.call(v)
	case *events.GroupInfo:
		return c.groupInfo(v)
	}
	return nil
}

// user renders an address as a phone-number JID: the alternate address
// WhatsApp sent, else the session's LID mapping, else the address as given.
func (c converter) user(primary, alt types.JID) string {
	if primary.Server != types.HiddenUserServer {
		return primary.ToNonAD().String()
	}
	if !alt.IsEmpty() {
		return alt.ToNonAD().String()
	}
	if c.lids != nil {
		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		pn, err := c.lids.GetPNForLID(ctx, primary.ToNonAD())
		if err == nil && !pn.IsEmpty() {
			return pn.ToNonAD().String()
		}
		if err != nil {
			L_debug("whatsapp: lid lookup failed", "lid", primary.String(), "error", err)
		}
	}
	return primary.ToNonAD().String()
}

// userString is user for a JID carried as a string in a protobuf field.
func (c converter) userString(raw string) string {
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return c.user(jid, types.EmptyJID)
}

func (c converter) users(jids []types.JID) []string {
	if len(jids) == 0 {
		return nil
	}
	out := make([]string, len(jids))
	for i, j := range jids {
		out[i] = c.user(j, types.EmptyJID)
	}
	return out
}

func (c converter) message(evt *events.Message) itypes.Event {
	info := evt.Info
	if info.Chat == types.StatusBroadcastJID || info.Chat.Server == types.NewsletterServer || info.Chat.Server == types.BroadcastServer {
		return nil
	}
	msg := evt.Message
	if msg == nil {
		return nil
	}

	base := itypes.MessageInfo{
		ID:        info.ID,
		Chat:      info.Chat.ToNonAD().String(),
		Sender:    c.user(info.Sender, info.SenderAlt),
		PushName:  info.PushName,
		IsGroup:   info.IsGroup,
		FromMe:    info.IsFromMe,
		Timestamp: info.Timestamp,
	}

	if r := msg.GetReactionMessage(); r != nil {
		return &itypes.ReactionEvent{MessageInfo: base, TargetID: r.GetKey().GetID(), Emoji: r.GetText()}
	}

	ref, ctxInfo := mediaOf(msg)
	if ref == nil {
		ctxInfo = msg.GetExtendedTextMessage().GetContextInfo()
	}
	if ctxInfo != nil {
		for _, m := range ctxInfo.GetMentionedJID() {
			base.Mentions = append(base.Mentions, c.userString(m))
		}
		base.Quoted = c.quoted(ctxInfo)
	}

	if ref != nil {
		return &itypes.MediaMessage{MessageInfo: base, Caption: captionOf(msg), Media: *ref}
	}
	text := textOf(msg)
	if text == "" {
		return nil
	}
	return &itypes.TextMessage{MessageInfo: base, Text: text}
}

func textOf(m *waE2E.Message) string {
	if t := m.GetConversation(); t != "" {
		return t
	}
	return m.GetExtendedTextMessage().GetText()
}

func captionOf(m *waE2E.Message) string {
	switch {
	case m.GetImageMessage() != nil:
		return m.GetImageMessage().GetCaption()
	case m.GetVideoMessage() != nil:
		return m.GetVideoMessage().GetCaption()
	case m.GetDocumentMessage() != nil:
		return m.GetDocumentMessage().GetCaption()
	}
	return ""
}

// mediaOf returns the downloadable attachment of m, if any, with the
// attachment's context info.
func mediaOf(m *waE2E.Message) (*itypes.MediaRef, *waE2E.ContextInfo) {
	switch {
	case m.GetImageMessage() != nil:
		im := m.GetImageMessage()
		return &itypes.MediaRef{Kind: itypes.MediaImage, MIME: im.GetMimetype(), Size: im.GetFileLength(), Handle: whatsmeow.DownloadableMessage(im)}, im.GetContextInfo()
	case m.GetVideoMessage() != nil:
		vm := m.GetVideoMessage()
		return &itypes.MediaRef{Kind: itypes.MediaVideo, MIME: vm.GetMimetype(), Size: vm.GetFileLength(), Seconds: vm.GetSeconds(), Animated: vm.GetGifPlayback(), Handle: whatsmeow.DownloadableMessage(vm)}, vm.GetContextInfo()
	case m.GetAudioMessage() != nil:
		am := m.GetAudioMessage()
		return &itypes.MediaRef{Kind: itypes.MediaAudio, MIME: am.GetMimetype(), Size: am.GetFileLength(), Seconds: am.GetSeconds(), Handle: whatsmeow.DownloadableMessage(am)}, am.GetContextInfo()
	case m.GetStickerMessage() != nil:
		sm := m.GetStickerMessage()
		return &itypes.MediaRef{Kind: itypes.MediaSticker, MIME: sm.GetMimetype(), Size: sm.GetFileLength(), Animated: sm.GetIsAnimated(), Handle: whatsmeow.DownloadableMessage(sm)}, sm.GetContextInfo()
	case m.GetDocumentMessage() != nil:
		dm := m.GetDocumentMessage()
		return &itypes.MediaRef{Kind: itypes.MediaDocument, MIME: dm.GetMimetype(), Size: dm.GetFileLength(), FileName: dm.GetFileName(), Handle: whatsmeow.DownloadableMessage(dm)}, dm.GetContextInfo()
	}
	return nil, nil
}

func (c converter) quoted(ci *waE2E.ContextInfo) *itypes.Quoted {
	if ci.GetStanzaID() == "" {
		return nil
	}
	q := &itypes.Quoted{ID: ci.GetStanzaID()}
	if p := ci.GetParticipant(); p != "" {
		q.Sender = c.userString(p)
	}
	if qm := ci.GetQuotedMessage(); qm != nil {
		q.Text = textOf(qm)
		if q.Text == "" {
			q.Text = captionOf(qm)
		}
		q.Media, _ = mediaOf(qm)
	}
	return q
}

func (c converter) call(v *events.CallOffer) itypes.Event {
	video := false
	if v.Data != nil {
		video = v.Data.GetChildByTag("video").Tag == "video"
	}
	return &itypes.CallOffer{
		CallID:    v.CallID,
		From:      c.user(v.From, types.EmptyJID),
		Timestamp: v.Timestamp,
		Video:     video,
		Group:     !v.GroupJID.IsEmpty(),
	}
}

func (c converter) groupInfo(v *events.GroupInfo) itypes.Event {
	if len(v.Join)+len(v.Leave)+len(v.Promote)+len(v.Demote) == 0 {
		return nil
	}
	ev := &itypes.GroupParticipants{
		Chat:      v.JID.ToNonAD().String(),
		Joined:    c.users(v.Join),
		Left:      c.users(v.Leave),
		Promoted:  c.users(v.Promote),
		Demoted:   c.users(v.Demote),
		Timestamp: v.Timestamp,
	}
	if v.Sender != nil {
		ev.Actor = c.user(*v.Sender, types.EmptyJID)
	}
	return ev
}
