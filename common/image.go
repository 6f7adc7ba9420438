package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DecodeImage decodes raw tile bytes into an image,
// returning the format name along with it (eg. "jpeg", "png").
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// FormatMaybeTransparent reports whether the named image format
// can carry an alpha channel. JPEG cannot.
func FormatMaybeTransparent(format string) bool {
	switch format {
	case "png", "gif", "webp":
		return true
	}
	return false
}
