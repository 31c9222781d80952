package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// passthroughFormats are handed to the recognizer unchanged.
var passthroughFormats = map[string]bool{"png": true, "jpeg": true, "tiff": true}

// NormalizeImage re-encodes images the recognizer handles poorly (BMP, WebP, GIF) as PNG.
// PNG, JPEG and TIFF are returned as is. Undecodable input returns an error.
func NormalizeImage(content []byte) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("detect image format: %w", err)
	}
	if passthroughFormats[format] {
		return content, nil
	}
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
