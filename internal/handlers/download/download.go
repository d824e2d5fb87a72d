// Package download holds the social media downloaders. Each one resolves a
// post URL through a configured endpoint, then fetches and sends the media.
package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/types"
	"github.com/roelfdiedericks/wabot/internal/upstream"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// maxItems caps how many files one post may produce.
const maxItems = 5

// maxNameRunes caps the title part of a sent file name.
const maxNameRunes = 60

// site describes one downloader.
type site struct {
	api     string   // config.APIs key
	service string   // name shown in errors
	hosts   []string // accepted URL hosts (suffix match)
	audio   bool     // always send as mp3
	example string
}

var sites = map[string]site{
	"tiktok":    {api: config.APITikTok, service: "TikTok", hosts: []string{"tiktok.com"}, example: "https://vm.tiktok.com/ZM123abc/"},
	"instagram": {api: config.APIInstagram, service: "Instagram", hosts: []string{"instagram.com", "instagr.am"}, example: "https://www.instagram.com/p/Cxyz123/"},
	"facebook":  {api: config.APIFacebook, service: "Facebook", hosts: []string{"facebook.com", "fb.watch"}, example: "https://fb.watch/abc123/"},
	"ytmp3":     {api: config.APIYTAudio, service: "YouTube", hosts: []string{"youtube.com", "youtu.be"}, audio: true, example: "https://youtu.be/dQw4w9WgXcQ"},
	"ytmp4":     {api: config.APIYTVideo, service: "YouTube", hosts: []string{"youtube.com", "youtu.be"}, example: "https://youtu.be/dQw4w9WgXcQ"},
}

// Register installs the download commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "tiktok", Aliases: []string{"tt"}, Description: "Download a TikTok video"},
		{Name: "instagram", Aliases: []string{"ig"}, Description: "Download an Instagram post or reel"},
		{Name: "facebook", Aliases: []string{"fb"}, Description: "Download a Facebook video"},
		{Name: "ytmp3", Aliases: []string{"song"}, Description: "Download the audio of a YouTube video"},
		{Name: "ytmp4", Aliases: []string{"video"}, Description: "Download a YouTube video"},
	} {
		c.Category = commands.CategoryDownload
		c.Usage = "<url>"
		c.Handler = siteHandler(sites[c.Name])
		m.Register(c)
	}
}

// result is the shape every download endpoint's extract yields.
type result struct {
	Title string   `json:"title"`
	URLs  []string `json:"urls"`
}

func siteHandler(s site) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) error {
		link := req.Arg(0)
		if link == "" && req.Msg.Quoted != nil {
			link = firstURL(req.Msg.Quoted.Text)
		}
		if !s.accepts(link) {
			return req.UsageHint("Example: " + req.Prefix + req.Command.Name + " " + s.example)
		}

		var res result
		if err := req.Services.HTTP.FetchJSON(ctx, s.service, req.Services.API(s.api), upstream.Vars{"query": link}, &res); err != nil {
			return err
		}
		urls := nonEmpty(res.URLs)
		if len(urls) == 0 {
			return &upstream.Error{Service: s.service, Err: fmt.Errorf("%w: no media in answer", upstream.ErrMalformed)}
		}
		if len(urls) > maxItems {
			urls = urls[:maxItems]
		}

		if err := req.React(ctx, "⏳"); err != nil {
			L_debug("download: progress reaction failed", "command", req.Command.Name, "error", err)
		}
		for i, u := range urls {
			caption := ""
			if i == 0 {
				caption = strings.TrimSpace(res.Title)
			}
			if err := sendURL(ctx, req, s, u, caption); err != nil {
				return err
			}
		}
		return nil
	}
}

func sendURL(ctx context.Context, req *commands.Request, s site, u, caption string) error {
	blob, err := req.Services.HTTP.Download(ctx, s.service, u)
	if err != nil {
		return err
	}
	L_debug("download: fetched", "service", s.service, "mime", blob.MIME, "bytes", len(blob.Data))

	out := &types.OutgoingMedia{Data: blob.Data, MIME: blob.MIME, Caption: caption}
	switch {
	case s.audio:
		if !strings.HasPrefix(blob.MIME, "audio/mpeg") {
			mp3, err := req.Services.Media.ToMP3(ctx, blob.Data)
			if err != nil {
				return fmt.Errorf("convert to mp3: %w", err)
			}
			out.Data = mp3
		}
		out.Kind, out.MIME, out.Caption = types.MediaAudio, "audio/mpeg", ""
		out.FileName = fileName(caption, ".mp3")
	case strings.HasPrefix(blob.MIME, "video/"):
		out.Kind = types.MediaVideo
	case strings.HasPrefix(blob.MIME, "image/"):
		out.Kind = types.MediaImage
	case strings.HasPrefix(blob.MIME, "audio/"):
		out.Kind = types.MediaAudio
	default:
		out.Kind = types.MediaDocument
		out.FileName = fileName(caption, blob.Ext)
	}
	return req.ReplyMedia(ctx, out)
}

func (s site) accepts(link string) bool {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range s.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func firstURL(text string) string {
	for _, f := range strings.Fields(text) {
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			return f
		}
	}
	return ""
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func fileName(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "download"
	}
	if r := []rune(name); len(r) > maxNameRunes {
		name = string(r[:maxNameRunes])
	}
	return name + ext
}
