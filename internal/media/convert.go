package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// StickerSize is the edge of a WhatsApp sticker canvas
const StickerSize = 512

// Options configures a Converter
type Options struct {
	FFmpeg            string
	CWebP             string
	MaxStickerSeconds int
}

// Converter turns inbound media into what the commands send back.
type Converter struct {
	opts Options
	run  Runner
	tmp  *TempStore
}

// NewConverter creates a converter. A nil runner means ExecRunner.
func NewConverter(opts Options, run Runner, tmp *TempStore) *Converter {
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.CWebP == "" {
		opts.CWebP = "cwebp"
	}
	if opts.MaxStickerSeconds <= 0 {
		opts.MaxStickerSeconds = 8
	}
	if run == nil {
		run = ExecRunner{}
	}
	return &Converter{opts: opts, run: run, tmp: tmp}
}

// Sticker converts an image, gif or video into webp sticker bytes.
// The second result reports whether the sticker is animated.
func (c *Converter) Sticker(ctx context.Context, data []byte) ([]byte, bool, error) {
	mime := DetectMIME(data)
	switch {
	case IsAnimatedWebP(data):
		// already an animated sticker
		return data, true, nil
	case IsMoving(mime):
		out, err := c.animatedSticker(ctx, data)
		return out, true, err
	case IsImage(mime):
		out, err := c.staticSticker(ctx, data)
		return out, false, err
	}
	return nil, false, fmt.Errorf("%w: %s", ErrUnsupported, mime)
}

func (c *Converter) staticSticker(ctx context.Context, data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	canvas := FitSticker(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	in, err := c.tmp.Save(buf.Bytes(), ".png")
	if err != nil {
		return nil, err
	}
	defer c.tmp.Release(in)
	out := c.tmp.NewPath(".webp")
	defer c.tmp.Release(out)

	err = c.run.Run(ctx, c.opts.CWebP, "-quiet", "-q", "80", in, "-o", out)
	if IsToolMissing(err) {
		L_debug("media: cwebp missing, using ffmpeg")
		err = c.run.Run(ctx, c.opts.FFmpeg, "-y", "-loglevel", "error", "-i", in, "-vcodec", "libwebp", "-lossless", "0", "-q:v", "80", out)
	}
	if err != nil {
		return nil, err
	}
	return readOutput(out)
}

func (c *Converter) animatedSticker(ctx context.Context, data []byte) ([]byte, error) {
	in, err := c.tmp.Save(data, Extension(data))
	if err != nil {
		return nil, err
	}
	defer c.tmp.Release(in)
	out := c.tmp.NewPath(".webp")
	defer c.tmp.Release(out)

	size := strconv.Itoa(StickerSize)
	filter := "scale=" + size + ":" + size + ":force_original_aspect_ratio=decrease,fps=15," +
		"pad=" + size + ":" + size + ":-1:-1:color=0x00000000"
	err = c.run.Run(ctx, c.opts.FFmpeg,
		"-y", "-loglevel", "error",
		"-i", in,
		"-t", strconv.Itoa(c.opts.MaxStickerSeconds),
		"-vf", filter,
		"-vcodec", "libwebp", "-loop", "0", "-preset", "default", "-an", "-vsync", "0",
		out)
	if err != nil {
		return nil, err
	}
	return readOutput(out)
}

// FitSticker scales img to fit the sticker canvas and centres it on a
// transparent background.
func FitSticker(img image.Image) *image.NRGBA {
	fitted := imaging.Fit(img, StickerSize, StickerSize, imaging.Lanczos)
	canvas := imaging.New(StickerSize, StickerSize, color.NRGBA{})
	return imaging.PasteCenter(canvas, fitted)
}

// ToImage turns a webp sticker into a PNG. Animated stickers, which the
// webp decoder does not handle, go through ffmpeg and yield the first frame.
func (c *Converter) ToImage(ctx context.Context, data []byte) ([]byte, error) {
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	}

	in, err := c.tmp.Save(data, ".webp")
	if err != nil {
		return nil, err
	}
	defer c.tmp.Release(in)
	out := c.tmp.NewPath(".png")
	defer c.tmp.Release(out)

	if err := c.run.Run(ctx, c.opts.FFmpeg, "-y", "-loglevel", "error", "-i", in, "-frames:v", "1", out); err != nil {
		return nil, err
	}
	return readOutput(out)
}

// ToMP3 extracts the audio track of a video or voice note as mp3.
func (c *Converter) ToMP3(ctx context.Context, data []byte) ([]byte, error) {
	in, err := c.tmp.Save(data, Extension(data))
	if err != nil {
		return nil, err
	}
	defer c.tmp.Release(in)
	out := c.tmp.NewPath(".mp3")
	defer c.tmp.Release(out)

	if err := c.run.Run(ctx, c.opts.FFmpeg, "-y", "-loglevel", "error", "-i", in, "-vn", "-acodec", "libmp3lame", "-b:a", "128k", out); err != nil {
		return nil, err
	}
	return readOutput(out)
}

// Blur applies a gaussian blur and returns a JPEG.
func Blur(data []byte, sigma float64) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	if sigma <= 0 {
		sigma = 8
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, imaging.Blur(img, sigma), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	mime := DetectMIME(data)
	if mime == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	if !IsImage(mime) && mime != "image/gif" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read converted file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("conversion produced an empty file")
	}
	return data, nil
}

// MaxStickerSeconds is the longest clip Sticker accepts.
func (c *Converter) MaxStickerSeconds() int {
	return c.opts.MaxStickerSeconds
}
