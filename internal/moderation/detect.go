// Package moderation decides what to do about messages in moderated groups:
// link, mass-mention and bad-word detection plus the per-user warn counters.
package moderation

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// Features
const (
	FeatureAntiLink    = "antilink"
	FeatureAntiTag     = "antitag"
	FeatureAntiBadword = "antibadword"
	FeatureWarn        = "warn" // manual .warn
)

// MinMassMention is the floor of the anti-tag threshold.
const MinMassMention = 5

var (
	inviteRe = regexp.MustCompile(`(?i)chat\.whatsapp\.com/[A-Za-z0-9]+`)
	linkRe   = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.[a-z0-9-]+\.[a-z]{2,}\S*`)
)

// HasInvite reports whether text contains a WhatsApp group invite.
func HasInvite(text string) bool {
	return inviteRe.MatchString(text)
}

// HasLink reports whether text contains a group invite or a web link.
func HasLink(text string) bool {
	return HasInvite(text) || linkRe.MatchString(text)
}

// MassMentionThreshold is max(5, half the group rounded up).
func MassMentionThreshold(members int) int {
	return max(MinMassMention, (members+1)/2)
}

// IsMassMention reports whether a message tags too many people, or tags
// several people without showing any @ text (a hidden tag).
func IsMassMention(text string, mentions []string, members int) bool {
	if len(mentions) == 0 {
		return false
	}
	if len(mentions) >= MassMentionThreshold(members) {
		return true
	}
	return len(mentions) > 1 && !slices.ContainsFunc(mentions, func(jid string) bool {
		return strings.Contains(text, types.Mention(jid))
	})
}

// MatchBadword returns the first listed word that appears in text as a whole
// word, ignoring case.
func MatchBadword(text string, words []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && slices.Contains(tokens, w) {
			return w, true
		}
	}
	return "", false
}

// Hit is a detected violation.
type Hit struct {
	Feature string
	Config  store.FeatureConfig
	Detail  string
}

// Detect checks a group message against the chat's enabled features, in the
// order antilink, antitag, antibadword, and returns the first hit.
func Detect(settings store.ChatSettings, text string, mentions []string, members int) (Hit, bool) {
	if settings.AntiLink.Enabled && HasLink(text) {
		return Hit{Feature: FeatureAntiLink, Config: settings.AntiLink, Detail: "link"}, true
	}
	if settings.AntiTag.Enabled && IsMassMention(text, mentions, members) {
		return Hit{Feature: FeatureAntiTag, Config: settings.AntiTag, Detail: "mass mention"}, true
	}
	if settings.AntiBadword.Enabled {
		if w, ok := MatchBadword(text, settings.AntiBadword.Words); ok {
			return Hit{Feature: FeatureAntiBadword, Config: settings.AntiBadword.FeatureConfig, Detail: w}, true
		}
	}
	return Hit{}, false
}
