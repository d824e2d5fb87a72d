// Package mediatools holds the media conversion commands.
package mediatools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roelfdiedericks/wabot/internal/commands"
	"github.com/roelfdiedericks/wabot/internal/media"
	"github.com/roelfdiedericks/wabot/internal/types"
)

// maxBlur bounds the .blur strength.
const maxBlur = 50

// Register installs the media commands.
func Register(m *commands.Manager) {
	for _, c := range []*commands.Command{
		{Name: "sticker", Aliases: []string{"s"}, Description: "Turn an image, gif or short video into a sticker", Usage: "(send or reply to media)", Handler: handleSticker},
		{Name: "toimg", Description: "Turn a sticker back into an image", Usage: "(reply to a sticker)", Handler: handleToImage},
		{Name: "tomp3", Aliases: []string{"toaudio"}, Description: "Extract the audio of a video or voice note", Usage: "(reply to a video or audio)", Handler: handleToMP3},
		{Name: "blur", Description: "Blur an image", Usage: "[strength 1-50] (send or reply to an image)", Handler: handleBlur},
	} {
		c.Category = commands.CategoryMedia
		m.Register(c)
	}
}

func handleSticker(ctx context.Context, req *commands.Request) error {
	conv := req.Services.Media
	ref := req.Media()
	if ref != nil && ref.Kind == types.MediaVideo && int(ref.Seconds) > conv.MaxStickerSeconds() {
		return commands.Fail("Videos for stickers must be %d seconds or shorter.", conv.MaxStickerSeconds())
	}

	data, _, err := req.DownloadMedia(ctx, types.MediaImage, types.MediaVideo, types.MediaSticker)
	if err != nil {
		return err
	}
	webp, animated, err := conv.Sticker(ctx, data)
	if err != nil {
		return fmt.Errorf("make sticker: %w", err)
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{
		Kind:     types.MediaSticker,
		Data:     webp,
		MIME:     "image/webp",
		Animated: animated,
	})
}

func handleToImage(ctx context.Context, req *commands.Request) error {
	data, _, err := req.DownloadMedia(ctx, types.MediaSticker)
	if err != nil {
		return err
	}
	img, err := req.Services.Media.ToImage(ctx, data)
	if err != nil {
		return fmt.Errorf("sticker to image: %w", err)
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{Kind: types.MediaImage, Data: img, MIME: "image/png"})
}

func handleToMP3(ctx context.Context, req *commands.Request) error {
	data, _, err := req.DownloadMedia(ctx, types.MediaVideo, types.MediaAudio)
	if err != nil {
		return err
	}
	mp3, err := req.Services.Media.ToMP3(ctx, data)
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{Kind: types.MediaAudio, Data: mp3, MIME: "audio/mpeg", FileName: "audio.mp3"})
}

func handleBlur(ctx context.Context, req *commands.Request) error {
	sigma := 8.0
	if arg := req.Arg(0); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > maxBlur {
			return req.Usage()
		}
		sigma = float64(n)
	}

	data, _, err := req.DownloadMedia(ctx, types.MediaImage)
	if err != nil {
		return err
	}
	out, err := media.Blur(data, sigma)
	if err != nil {
		return fmt.Errorf("blur: %w", err)
	}
	return req.ReplyMedia(ctx, &types.OutgoingMedia{Kind: types.MediaImage, Data: out, MIME: "image/jpeg"})
}
