// Package types holds wabot's own view of WhatsApp: JIDs as strings, the
// inbound event sum type and the Socket handlers talk to. Only the whatsapp
// channel package knows the library's shapes.
package types

import "strings"

// JID servers
const (
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
	LIDServer   = "lid"
)

// UserJID builds a user JID from a phone number (digits only).
func UserJID(number string) string {
	return number + "@" + UserServer
}

// IsGroup reports whether jid is a group chat.
func IsGroup(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}

// UserPart returns the part of jid before '@', without any device suffix.
func UserPart(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

// Normalize strips the device suffix so "123:7@s.whatsapp.net" and
// "123@s.whatsapp.net" compare equal.
func Normalize(jid string) string {
	user, server, ok := strings.Cut(jid, "@")
	if !ok {
		return jid
	}
	user, _, _ = strings.Cut(user, ":")
	return user + "@" + server
}

// SameUser compares two JIDs ignoring device suffixes.
func SameUser(a, b string) bool {
	return a != "" && Normalize(a) == Normalize(b)
}

// Mention renders the @-text WhatsApp expects alongside a mention JID.
func Mention(jid string) string {
	return "@" + UserPart(jid)
}
