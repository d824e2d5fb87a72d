// Package fun holds the light commands: jokes, quotes and the magic 8-ball.
package fun

import (
	"context"
	"math/rand/v2"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/config"
	"github.com/roelfdiedericks/wabot/internal/upstream"
)

// Register installs the fun commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "joke", Description: "Tell a joke", Handler: handleJoke},
		{Name: "quote", Description: "Share a quote", Handler: handleQuote},
		{Name: "8ball", Description: "Ask the magic 8-ball", Usage: "<question>", Handler: handle8Ball},
	} {
		c.Category = commands.CategoryFun
		m.Register(c)
	}
}

type joke struct {
	Setup     string `json:"setup"`
	Punchline string `json:"punchline"`
}

func handleJoke(ctx context.Context, req *commands.Request) error {
	var j joke
	if err := req.Services.HTTP.FetchJSON(ctx, "Jokes", req.Services.API(config.APIJoke), nil, &j); err != nil {
		return err
	}
	if j.Setup == "" {
		return &upstream.Error{Service: "Jokes", Err: upstream.ErrMalformed}
	}
	return req.Replyf(ctx, "%s\n\n%s", j.Setup, j.Punchline)
}

type quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func handleQuote(ctx context.Context, req *commands.Request) error {
	var q quote
	if err := req.Services.HTTP.FetchJSON(ctx, "Quotes", req.Services.API(config.APIQuote), nil, &q); err != nil {
		return err
	}
	if q.Text == "" {
		return &upstream.Error{Service: "Quotes", Err: upstream.ErrMalformed}
	}
	if q.Author == "" {
		q.Author = "Unknown"
	}
	return req.Replyf(ctx, "_\"%s\"_\n— %s", q.Text, q.Author)
}

var answers = []string{
	"It is certain.", "It is decidedly so.", "Without a doubt.", "Yes, definitely.",
	"You may rely on it.", "As I see it, yes.", "Most likely.", "Outlook good.",
	"Yes.", "Signs point to yes.", "Reply hazy, try again.", "Ask again later.",
	"Better not tell you now.", "Cannot predict now.", "Concentrate and ask again.",
	"Don't count on it.", "My reply is no.", "My sources say no.",
	"Outlook not so good.", "Very doubtful.",
}

// pick chooses an answer index; tests replace it.
var pick = rand.IntN

func handle8Ball(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	return req.Replyf(ctx, "🎱 %s", answers[pick(len(answers))])
}
