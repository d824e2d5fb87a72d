package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	itypes "github.com/roelfdiedericks/wabot/internal/types"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

const maxWhatsAppMessage = 65536

var _ itypes.Socket = (*Client)(nil)

func parseJID(s string) (types.JID, error) {
	jid, err := types.ParseJID(s)
	if err != nil {
		return types.EmptyJID, fmt.Errorf("invalid jid %q: %w", s, err)
	}
	return jid, nil
}

// mapErr tags WhatsApp's permission refusals with types.ErrForbidden.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, whatsmeow.ErrIQForbidden) || errors.Is(err, whatsmeow.ErrIQNotAuthorized) {
		return fmt.Errorf("%w: %v", itypes.ErrForbidden, err)
	}
	return err
}

// OwnJID returns the bot's own user JID.
func (b *Client) OwnJID() string {
	if b.client.Store.ID == nil {
		return ""
	}
	return b.client.Store.ID.ToNonAD().String()
}

// Send delivers text or media to chat. Long texts are split; only the first
// part carries the quote. Returns the last message ID.
func (b *Client) Send(ctx context.Context, chat string, out itypes.Outgoing) (string, error) {
	to, err := parseJID(chat)
	if err != nil {
		return "", err
	}
	ci := contextInfo(out)

	if out.Media != nil {
		msg, err := b.uploadMedia(ctx, out.Media, ci)
		if err != nil {
			return "", err
		}
		resp, err := b.client.SendMessage(ctx, to, msg)
		if err != nil {
			return "", fmt.Errorf("send media: %w", mapErr(err))
		}
		return resp.ID, nil
	}

	var id string
	for i, chunk := range splitMessage(out.Text, maxWhatsAppMessage) {
		if i > 0 && ci != nil {
			ci = &waE2E.ContextInfo{MentionedJID: ci.MentionedJID}
		}
		resp, err := b.client.SendMessage(ctx, to, textMessage(chunk, ci))
		if err != nil {
			return id, fmt.Errorf("send text: %w", mapErr(err))
		}
		id = resp.ID
	}
	L_trace("whatsapp: sent", "chat", chat, "id", id)
	return id, nil
}

func contextInfo(out itypes.Outgoing) *waE2E.ContextInfo {
	if len(out.Mentions) == 0 && out.Quote == nil {
		return nil
	}
	ci := &waE2E.ContextInfo{}
	if len(out.Mentions) > 0 {
		ci.MentionedJID = out.Mentions
	}
	if q := out.Quote; q != nil {
		ci.StanzaID = proto.String(q.ID)
		ci.Participant = proto.String(q.Sender)
		ci.QuotedMessage = &waE2E.Message{Conversation: proto.String("")}
	}
	return ci
}

func textMessage(text string, ci *waE2E.ContextInfo) *waE2E.Message {
	if ci == nil {
		return &waE2E.Message{Conversation: proto.String(text)}
	}
	return &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text:        proto.String(text),
		ContextInfo: ci,
	}}
}

func (b *Client) uploadMedia(ctx context.Context, m *itypes.OutgoingMedia, ci *waE2E.ContextInfo) (*waE2E.Message, error) {
	resp, err := b.client.Upload(ctx, m.Data, mediaType(m.Kind))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", m.Kind, err)
	}
	return buildMediaMessage(m, &resp, ci), nil
}

// mediaType maps an attachment kind to whatsmeow's upload bucket.
func mediaType(kind itypes.MediaKind) whatsmeow.MediaType {
	switch kind {
	case itypes.MediaImage, itypes.MediaSticker:
		return whatsmeow.MediaImage
	case itypes.MediaVideo:
		return whatsmeow.MediaVideo
	case itypes.MediaAudio:
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// buildMediaMessage creates the proto message for an uploaded attachment
func buildMediaMessage(m *itypes.OutgoingMedia, resp *whatsmeow.UploadResponse, ci *waE2E.ContextInfo) *waE2E.Message {
	length := uint64(len(m.Data))
	mime := proto.String(m.MIME)
	switch m.Kind {
	case itypes.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption: proto.String(m.Caption), Mimetype: mime,
			URL: &resp.URL, DirectPath: &resp.DirectPath, MediaKey: resp.MediaKey,
			FileEncSHA256: resp.FileEncSHA256, FileSHA256: resp.FileSHA256, FileLength: &length,
			ContextInfo: ci,
		}}
	case itypes.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption: proto.String(m.Caption), Mimetype: mime, GifPlayback: proto.Bool(m.Animated),
			URL: &resp.URL, DirectPath: &resp.DirectPath, MediaKey: resp.MediaKey,
			FileEncSHA256: resp.FileEncSHA256, FileSHA256: resp.FileSHA256, FileLength: &length,
			ContextInfo: ci,
		}}
	case itypes.MediaAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype: mime, PTT: proto.Bool(m.PTT),
			URL: &resp.URL, DirectPath: &resp.DirectPath, MediaKey: resp.MediaKey,
			FileEncSHA256: resp.FileEncSHA256, FileSHA256: resp.FileSHA256, FileLength: &length,
			ContextInfo: ci,
		}}
	case itypes.MediaSticker:
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			Mimetype: mime, IsAnimated: proto.Bool(m.Animated),
			URL: &resp.URL, DirectPath: &resp.DirectPath, MediaKey: resp.MediaKey,
			FileEncSHA256: resp.FileEncSHA256, FileSHA256: resp.FileSHA256, FileLength: &length,
			ContextInfo: ci,
		}}
	default:
		name := m.FileName
		if name == "" {
			name = "file"
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption: proto.String(m.Caption), Mimetype: mime, FileName: proto.String(name),
			URL: &resp.URL, DirectPath: &resp.DirectPath, MediaKey: resp.MediaKey,
			FileEncSHA256: resp.FileEncSHA256, FileSHA256: resp.FileSHA256, FileLength: &length,
			ContextInfo: ci,
		}}
	}
}

// keyJIDs resolves a message key to the chat and the sender whatsmeow wants
// (EmptyJID for our own messages).
func keyJIDs(target itypes.MessageKey) (types.JID, types.JID, error) {
	chat, err := parseJID(target.Chat)
	if err != nil {
		return types.EmptyJID, types.EmptyJID, err
	}
	if target.FromMe || target.Sender == "" {
		return chat, types.EmptyJID, nil
	}
	sender, err := parseJID(target.Sender)
	if err != nil {
		return types.EmptyJID, types.EmptyJID, err
	}
	return chat, sender, nil
}

// React sets (or, with "", clears) a reaction on target.
func (b *Client) React(ctx context.Context, target itypes.MessageKey, emoji string) error {
	chat, sender, err := keyJIDs(target)
	if err != nil {
		return err
	}
	if sender.IsEmpty() && b.client.Store.ID != nil {
		sender = b.client.Store.ID.ToNonAD()
	}
	msg := b.client.BuildReaction(chat, sender, types.MessageID(target.ID), emoji)
	if _, err := b.client.SendMessage(ctx, chat, msg); err != nil {
		return fmt.Errorf("failed to send reaction: %w", mapErr(err))
	}
	return nil
}

// Delete revokes target for everyone. Other people's messages need admin.
func (b *Client) Delete(ctx context.Context, target itypes.MessageKey) error {
	chat, sender, err := keyJIDs(target)
	if err != nil {
		return err
	}
	msg := b.client.BuildRevoke(chat, sender, types.MessageID(target.ID))
	if _, err := b.client.SendMessage(ctx, chat, msg); err != nil {
		return fmt.Errorf("failed to revoke message: %w", mapErr(err))
	}
	L_debug("whatsapp: revoked message", "chat", target.Chat, "id", target.ID)
	return nil
}

// Download fetches the attachment behind ref.
func (b *Client) Download(ctx context.Context, ref *itypes.MediaRef) ([]byte, error) {
	dm, ok := ref.Handle.(whatsmeow.DownloadableMessage)
	if !ok {
		return nil, fmt.Errorf("media %s has no download handle", ref.Kind)
	}
	data, err := b.client.Download(ctx, dm)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	L_debug("whatsapp: media downloaded", "kind", ref.Kind, "size", len(data), "mime", ref.MIME)
	return data, nil
}

// GroupInfo fetches the group's metadata and participants.
func (b *Client) GroupInfo(ctx context.Context, chat string) (*itypes.GroupInfo, error) {
	jid, err := parseJID(chat)
	if err != nil {
		return nil, err
	}
	info, err := b.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("group info: %w", mapErr(err))
	}
	return b.converter(ctx).group(info), nil
}

func (c converter) group(info *types.GroupInfo) *itypes.GroupInfo {
	g := &itypes.GroupInfo{
		JID:      info.JID.String(),
		Name:     info.Name,
		Topic:    info.Topic,
		Announce: info.IsAnnounce,
		Created:  info.GroupCreated,
	}
	if !info.OwnerJID.IsEmpty() {
		g.Owner = c.user(info.OwnerJID, types.EmptyJID)
	}
	for _, p := range info.Participants {
		g.Participants = append(g.Participants, itypes.Participant{
			JID:          c.user(p.JID, p.PhoneNumber),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	return g
}

var participantChanges = map[itypes.ParticipantAction]whatsmeow.ParticipantChange{
	itypes.ParticipantAdd:     whatsmeow.ParticipantChangeAdd,
	itypes.ParticipantRemove:  whatsmeow.ParticipantChangeRemove,
	itypes.ParticipantPromote: whatsmeow.ParticipantChangePromote,
	itypes.ParticipantDemote:  whatsmeow.ParticipantChangeDemote,
}

// UpdateParticipants adds, removes, promotes or demotes users in chat.
func (b *Client) UpdateParticipants(ctx context.Context, chat string, users []string, action itypes.ParticipantAction) error {
	change, ok := participantChanges[action]
	if !ok {
		return fmt.Errorf("unknown participant action %q", action)
	}
	group, err := parseJID(chat)
	if err != nil {
		return err
	}
	jids := make([]types.JID, 0, len(users))
	for _, u := range users {
		jid, err := parseJID(u)
		if err != nil {
			return err
		}
		jids = append(jids, jid)
	}

	res, err := b.client.UpdateGroupParticipants(ctx, group, jids, change)
	if err != nil {
		return fmt.Errorf("%s participants: %w", action, mapErr(err))
	}
	var failed []string
	for _, p := range res {
		if p.Error == 403 {
			return fmt.Errorf("%s %s: %w", action, p.JID, itypes.ErrForbidden)
		}
		if p.Error != 0 {
			failed = append(failed, fmt.Sprintf("%s (%d)", p.JID.User, p.Error))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s failed for %s", action, strings.Join(failed, ", "))
	}
	return nil
}

// SetAnnounce toggles admins-only messaging.
func (b *Client) SetAnnounce(ctx context.Context, chat string, announce bool) error {
	jid, err := parseJID(chat)
	if err != nil {
		return err
	}
	if err := b.client.SetGroupAnnounce(ctx, jid, announce); err != nil {
		return fmt.Errorf("set announce: %w", mapErr(err))
	}
	return nil
}

// InviteLink returns (and optionally resets) the group invite link.
func (b *Client) InviteLink(ctx context.Context, chat string, reset bool) (string, error) {
	jid, err := parseJID(chat)
	if err != nil {
		return "", err
	}
	link, err := b.client.GetGroupInviteLink(ctx, jid, reset)
	if err != nil {
		return "", fmt.Errorf("invite link: %w", mapErr(err))
	}
	return link, nil
}

// UpdateBlockStatus blocks or unblocks a user.
func (b *Client) UpdateBlockStatus(ctx context.Context, user string, block bool) error {
	jid, err := parseJID(user)
	if err != nil {
		return err
	}
	action := events.BlocklistChangeActionUnblock
	if block {
		action = events.BlocklistChangeActionBlock
	}
	if _, err := b.client.UpdateBlocklist(ctx, jid, action); err != nil {
		return fmt.Errorf("failed to update blocklist: %w", err)
	}
	return nil
}

// RejectCall declines an incoming call.
func (b *Client) RejectCall(ctx context.Context, from, callID string) error {
	jid, err := parseJID(from)
	if err != nil {
		return err
	}
	if err := b.client.RejectCall(ctx, jid, callID); err != nil {
		return fmt.Errorf("reject call: %w", err)
	}
	return nil
}

// splitMessage splits a message into chunks that fit the WhatsApp limit,
// preferring to break at a newline in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		end := min(maxLen, len(text))
		if end < len(text) {
			if idx := strings.LastIndex(text[:end], "\n"); idx > end/2 {
				end = idx + 1
			}
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == 0 {
				_, end = utf8.DecodeRuneInString(text)
			}
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}
