package ai

import (
	"regexp"
	"strings"
)

var (
	mdBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdStrike = regexp.MustCompile(`~~(.+?)~~`)
	mdHeader = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	mdLink   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdImage  = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	mdBullet = regexp.MustCompile(`(?m)^(\s*)[*+]\s+`)
)

// ChatFormat rewrites model markdown into WhatsApp markup: *bold*,
// ~strike~, headings as bold lines, links as "text (url)". Code fences and
// _italic_ already mean the same thing in both.
func ChatFormat(markdown string) string {
	if markdown == "" {
		return ""
	}
	text := mdImage.ReplaceAllString(markdown, "$2")
	text = mdLink.ReplaceAllString(text, "$1 ($2)")
	text = mdHeader.ReplaceAllString(text, "*$1*")
	// bullets first, so "* item" is not read as bold
	text = mdBullet.ReplaceAllString(text, "$1- ")
	text = mdBold.ReplaceAllString(text, "*$1*")
	text = mdStrike.ReplaceAllString(text, "~$1~")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
