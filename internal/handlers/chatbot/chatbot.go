// Package chatbot holds the AI commands.
package chatbot

import (
	"context"
	"fmt"

	"github.com/roelfdiedericks/wabot/internal/ai"
	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// Register installs the AI commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "ai", Aliases: []string{"gpt", "ask"}, Description: "Ask the AI; it remembers the recent chat", Usage: "<question>", Handler: handleAsk},
		{Name: "imagine", Description: "Generate an image from a description", Usage: "<description>", Handler: handleImagine},
		{Name: "resetai", Description: "Make the AI forget this chat's conversation", Handler: handleReset},
	} {
		c.Category = commands.CategoryAI
		m.Register(c)
	}
}

func handleAsk(ctx context.Context, req *commands.Request) error {
	prompt := req.Query
	if q := req.Msg.Quoted; q != nil && q.Text != "" {
		if prompt == "" {
			prompt = q.Text
		} else {
			prompt = fmt.Sprintf("%s\n\n(replying to: %q)", prompt, q.Text)
		}
	}
	if prompt == "" {
		return req.UsageHint("Example: " + req.Prefix + "ai explain goroutines in one line")
	}

	answer, err := req.Services.AI.Ask(ctx, req.Msg.Chat, prompt)
	if err != nil {
		return err
	}
	return req.Reply(ctx, ai.ChatFormat(answer))
}

func handleImagine(ctx context.Context, req *commands.Request) error {
	if req.Query == "" {
		return req.Usage()
	}
	img, err := req.Services.AI.Imagine(ctx, req.Query)
	if err != nil {
		return err
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{Kind: types.MediaImage, Data: img, MIME: "image/png", Caption: req.Query})
}

func handleReset(ctx context.Context, req *commands.Request) error {
	n := req.Services.AI.Reset(req.Msg.Chat)
	if n == 0 {
		return req.Reply(ctx, "There was no conversation to forget.")
	}
	return req.Reply(ctx, "Conversation forgotten.")
}
