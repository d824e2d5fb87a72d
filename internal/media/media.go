// Package media converts chat media for the bot: MIME sniffing, a temp
// directory with TTL cleanup, and sticker/image/audio conversion through
// imaging and the ffmpeg/cwebp binaries.
package media

import (
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Errors returned by the conversions
var (
	ErrToolMissing = errors.New("media tool not installed")
	ErrUnsupported = errors.New("unsupported media type")
)

// DetectMIME returns the MIME type from magic bytes (not file extension)
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Extension returns the usual file extension for data, with the dot.
func Extension(data []byte) string {
	return mimetype.Detect(data).Extension()
}

// IsImage reports whether mime is a still image format we can decode.
func IsImage(mime string) bool {
	switch baseMIME(mime) {
	case "image/jpeg", "image/png", "image/webp", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// IsMoving reports whether mime needs ffmpeg to become a sticker.
func IsMoving(mime string) bool {
	m := baseMIME(mime)
	return m == "image/gif" || strings.HasPrefix(m, "video/")
}

// IsAnimatedWebP reports whether data is a webp with the animation flag
// set in its VP8X header. The still-image decoder cannot read these.
func IsAnimatedWebP(data []byte) bool {
	if len(data) < 21 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return false
	}
	return string(data[12:16]) == "VP8X" && data[20]&0x02 != 0
}

func baseMIME(mime string) string {
	m, _, _ := strings.Cut(mime, ";")
	return strings.TrimSpace(strings.ToLower(m))
}
