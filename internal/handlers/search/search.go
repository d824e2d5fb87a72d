// Package search holds the lookup commands: weather, lyrics, dictionary,
// Wikipedia, image search, translation and article reading.
package search

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/types"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

// maxChars keeps long answers inside one chat message.
const maxChars = 3500

// Register installs the search commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "weather", Description: "Current weather for a city", Usage: "<city>", Handler: handleWeather},
		{Name: "lyrics", Description: "Find song lyrics", Usage: "<song title>", Handler: handleLyrics},
		{Name: "define", Description: "Look up a word", Usage: "<word>", Handler: handleDefine},
		{Name: "wiki", Description: "Wikipedia summary", Usage: "<topic>", Handler: handleWiki},
		{Name: "image", Aliases: []string{"img"}, Description: "Search for a picture", Usage: "<query>", Handler: handleImage},
		{Name: "translate", Aliases: []string{"tr"}, Description: "Translate text (or a replied message)", Usage: "<lang> <text>", Handler: handleTranslate},
		{Name: "read", Description: "Fetch a web page as readable text", Usage: "<url>", Handler: handleRead},
	} {
		c.Category = commands.CategorySearch
		m.Register(c)
	}
}

type weatherResult struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feelsLike"`
	Humidity    float64 `json:"humidity"`
	Wind        float64 `json:"wind"`
	Description string  `json:"description"`
}

func handleWeather(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.UsageHint("Example: " + req.Prefix + "weather Cape Town")
	}
	var w weatherResult
	if err := req.Services.HTTP.FetchJSON(ctx, "Weather", req.Services.API(config.APIWeather), upstream.Vars{"query": req.Query}, &w); err != nil {
		return err
	}
	place := w.City
	if w.Country != "" {
		place += ", " + w.Country
	}
	return req.Replyf(ctx, "*Weather in %s*\n%s\nTemperature: %.1f°C (feels like %.1f°C)\nHumidity: %d%%\nWind: %.1f m/s",
		place, capitalize(w.Description), w.Temp, w.FeelsLike, int(math.Round(w.Humidity)), w.Wind)
}

type lyricsResult struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Lyrics string `json:"lyrics"`
}

func handleLyrics(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	var l lyricsResult
	if err := req.Services.HTTP.FetchJSON(ctx, "Lyrics", req.Services.API(config.APILyrics), upstream.Vars{"query": req.Query}, &l); err != nil {
		return err
	}
	if strings.TrimSpace(l.Lyrics) == "" {
		return commands.Fail("No lyrics found for %q.", req.Query)
	}
	return req.Replyf(ctx, "*%s* by %s\n\n%s", l.Title, l.Artist, truncate(strings.TrimSpace(l.Lyrics), maxChars))
}

type definition struct {
	Word     string `json:"word"`
	Phonetic string `json:"phonetic"`
	Meanings []struct {
		PartOfSpeech string `json:"partOfSpeech"`
		Definition   string `json:"definition"`
	} `json:"meanings"`
}

func handleDefine(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	var d definition
	if err := req.Services.HTTP.FetchJSON(ctx, "Dictionary", req.Services.API(config.APIDefine), upstream.Vars{"query": req.Query}, &d); err != nil {
		return err
	}
	if len(d.Meanings) == 0 {
		return commands.Fail("No definition found for %q.", req.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*", d.Word)
	if d.Phonetic != "" {
		fmt.Fprintf(&sb, " %s", d.Phonetic)
	}
	for i, m := range d.Meanings {
		if i == 3 {
			break
		}
		fmt.Fprintf(&sb, "\n\n_%s_\n%s", m.PartOfSpeech, m.Definition)
	}
	return req.Reply(ctx, sb.String())
}

type wikiResult struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	HTML    string `json:"html"`
	URL     string `json:"url"`
}

func handleWiki(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	var w wikiResult
	if err := req.Services.HTTP.FetchJSON(ctx, "Wikipedia", req.Services.API(config.APIWiki), upstream.Vars{"query": req.Query}, &w); err != nil {
		return err
	}
	body := strings.TrimSpace(w.Extract)
	if w.HTML != "" {
		if md, err := HTMLToChat(w.HTML); err == nil && md != "" {
			body = md
		}
	}
	if body == "" {
		return commands.Fail("Wikipedia has no article for %q.", req.Query)
	}
	text := fmt.Sprintf("*%s*\n\n%s", w.Title, truncate(body, maxChars))
	if w.URL != "" {
		text += "\n\n" + w.URL
	}
	return req.Reply(ctx, text)
}

type imageResult struct {
	URLs []string `json:"urls"`
}

func handleImage(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	var res imageResult
	if err := req.Services.HTTP.FetchJSON(ctx, "Image search", req.Services.API(config.APIImage), upstream.Vars{"query": req.Query}, &res); err != nil {
		return err
	}
	if len(res.URLs) == 0 {
		return commands.Fail("No pictures found for %q.", req.Query)
	}
	blob, err := req.Services.HTTP.Download(ctx, "Image search", res.URLs[0])
	if err != nil {
		return err
	}
	if !strings.HasPrefix(blob.MIME, "image/") {
		return &upstream.Error{Service: "Image search", Err: fmt.Errorf("%w: got %s", upstream.ErrMalformed, blob.MIME)}
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{Kind: types.MediaImage, Data: blob.Data, MIME: blob.MIME, Caption: req.Query})
}

var langCode = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z]{2,4})?$`)

type translation struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func handleTranslate(ctx context.Context, req *commands.Request) error {
	lang := req.Arg(0)
	if !langCode.MatchString(lang) {
		return req.UsageHint("Example: " + req.Prefix + "tr es good morning")
	}
	text := strings.TrimSpace(strings.TrimPrefix(req.Query, lang))
	if text == "" && req.Msg.Quoted != nil {
		text = req.Msg.Quoted.Text
	}
	if text == "" {
		return req.UsageHint("Example: " + req.Prefix + "tr es good morning")
	}

	var tr translation
	vars := upstream.Vars{"query": text, "to": strings.ToLower(lang)}
	if err := req.Services.HTTP.FetchJSON(ctx, "Translate", req.Services.API(config.APITranslate), vars, &tr); err != nil {
		return err
	}
	if tr.Text == "" {
		return &upstream.Error{Service: "Translate", Err: upstream.ErrMalformed}
	}
	from := tr.Source
	if from == "" {
		from = "auto"
	}
	return req.Replyf(ctx, "*%s → %s*\n%s", from, strings.ToLower(lang), tr.Text)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
