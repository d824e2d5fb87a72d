package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"

	"github.com/roelfdiedericks/wabot/internal/commands"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// minArticle is the shortest extraction worth sending; anything less is
// usually a script-rendered page.
const minArticle = 200

var errNoArticle = commands.Fail("That page has no readable article (it may need a browser).")

func handleRead(ctx context.Context, req *commands.Request) error {
	raw := req.Arg(0)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req.UsageHint("Example: " + req.Prefix + "read https://example.com/article")
	}

	body, final, err := req.Services.HTTP.FetchText(ctx, "That page", raw)
	if err != nil {
		return err
	}
	if final != "" {
		if fu, err := url.Parse(final); err == nil {
			u = fu
		}
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		L_warn("read: readability parse failed", "url", raw, "error", err)
		return errNoArticle
	}
	if len(strings.TrimSpace(article.TextContent)) < minArticle {
		L_debug("read: minimal content", "url", raw, "length", len(article.TextContent))
		return errNoArticle
	}

	text := blankRe.ReplaceAllString(strings.TrimSpace(article.TextContent), "\n\n")

	var sb strings.Builder
	if article.Title != "" {
		fmt.Fprintf(&sb, "*%s*\n", article.Title)
	}
	if article.Byline != "" {
		fmt.Fprintf(&sb, "_%s_\n", article.Byline)
	}
	if article.SiteName != "" {
		fmt.Fprintf(&sb, "%s\n", article.SiteName)
	}
	sb.WriteString("\n")
	sb.WriteString(truncate(text, maxChars))
	return req.Reply(ctx, strings.TrimSpace(sb.String()))
}

var (
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	imageRe   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)[^)]*\)`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToChat converts an HTML fragment to WhatsApp-flavoured text: bold is
// *x*, headings become bold lines, images are dropped and links keep only
// their text.
func HTMLToChat(html string) (string, error) {
	md, err := htmltomd.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("html to markdown: %w", err)
	}
	md = imageRe.ReplaceAllString(md, "")
	md = linkRe.ReplaceAllString(md, "$1")
	md = headingRe.ReplaceAllString(md, "*$1*")
	md = boldRe.ReplaceAllString(md, "*$1*")
	md = blankRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
