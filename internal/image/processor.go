// Package image hosts entity images: it downloads a source image, scales it
// to a bounded size and stores it under the configured image directory.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Supported image format names.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// ErrUnknownFormat is returned for data that is not JPEG, PNG or WebP.
var ErrUnknownFormat = errors.New("unrecognized image format")

// DetectFormat sniffs the magic number at the start of r. The returned reader
// yields the full stream, including the sniffed bytes.
func DetectFormat(r io.Reader) (format string, replay io.Reader, err error) {
	head := make([]byte, 12)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	head = head[:n]
	replay = io.MultiReader(bytes.NewReader(head), r)

	switch {
	case n >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return FormatJPEG, replay, nil
	case n >= 8 && string(head[:8]) == "\x89PNG\r\n\x1a\n":
		return FormatPNG, replay, nil
	case n >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return FormatWebP, replay, nil
	}
	return "", replay, ErrUnknownFormat
}

// Dimensions decodes only the header of an image.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Resize scales the image in src down to fit a maxSide x maxSide box and
// re-encodes it. Smaller images are re-encoded unscaled. WebP input comes
// out as PNG.
func Resize(src io.Reader, maxSide int) ([]byte, string, error) {
	format, replay, err := DetectFormat(src)
	if err != nil {
		return nil, "", fmt.Errorf("detecting format: %w", err)
	}

	img, _, err := image.Decode(replay)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxSide)
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	if format == FormatWebP {
		format = FormatPNG
	}
	data, err := encode(img, format)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// fitWithin returns w x h scaled so the longer side is at most maxSide.
func fitWithin(w, h, maxSide int) (int, int) {
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return w, h
	}
	scale := float64(maxSide) / float64(max(w, h))
	nw := max(int(math.Round(float64(w)*scale)), 1)
	nh := max(int(math.Round(float64(h)*scale)), 1)
	return nw, nh
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return buf.Bytes(), nil
}

func extension(format string) string {
	if format == FormatPNG {
		return ".png"
	}
	return ".jpg"
}
