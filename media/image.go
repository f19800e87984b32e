// Package media bounds captured frames to a maximum size and JPEG quality
// before they go on the wire.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Image format names as reported by image.Decode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

// MIMETypeJPEG is the content type of every bounded frame.
const MIMETypeJPEG = "image/jpeg"

// Quality limits on the 1-100 JPEG scale.
const (
	DefaultQuality = 50
	MinQuality     = 10
	QualityDecay   = 0.9
)

// ErrEmptyImage is returned for zero-length input.
var ErrEmptyImage = errors.New("empty image data")

// Bounds limits the encoded frame. Zero fields mean no limit.
type Bounds struct {
	MaxWidth  int
	MaxHeight int
	// MaxSizeBytes caps the encoded size; quality is lowered until it fits.
	MaxSizeBytes int64
	// Quality is the JPEG quality on the 1-100 scale.
	Quality int
}

// Result is a bounded frame.
type Result struct {
	Data         []byte
	Width        int
	Height       int
	OriginalSize int
	// WasReencoded is false when the input already satisfied the bounds and
	// was returned untouched.
	WasReencoded bool
}

// QualityPercent converts a (0, 1] compression ratio to the JPEG 1-100 scale.
func QualityPercent(ratio float64) int {
	q := int(math.Round(ratio * 100))
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}

// BoundImage makes sure data is a JPEG within b. A JPEG that already fits
// is returned unchanged without a full decode.
func BoundImage(data []byte, b Bounds) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	targetW, targetH := fitDimensions(cfg.Width, cfg.Height, b.MaxWidth, b.MaxHeight)
	needsResize := targetW < cfg.Width || targetH < cfg.Height
	fitsSize := b.MaxSizeBytes <= 0 || int64(len(data)) <= b.MaxSizeBytes

	if format == FormatJPEG && !needsResize && fitsSize {
		return &Result{
			Data:         data,
			Width:        cfg.Width,
			Height:       cfg.Height,
			OriginalSize: len(data),
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if needsResize {
		img = scale(img, targetW, targetH)
	}

	quality := b.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	encoded, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if b.MaxSizeBytes > 0 && int64(len(encoded)) > b.MaxSizeBytes {
		encoded, err = reduceToFitSize(img, quality, b.MaxSizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce image size: %w", err)
		}
	}

	bounds := img.Bounds()
	return &Result{
		Data:         encoded,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		OriginalSize: len(data),
		WasReencoded: true,
	}, nil
}

// fitDimensions scales w x h down to fit maxW x maxH keeping the aspect ratio.
func fitDimensions(w, h, maxW, maxH int) (targetW, targetH int) {
	targetW, targetH = w, h
	if maxW > 0 && targetW > maxW {
		ratio := float64(maxW) / float64(targetW)
		targetW = maxW
		targetH = int(float64(targetH) * ratio)
	}
	if maxH > 0 && targetH > maxH {
		ratio := float64(maxH) / float64(targetH)
		targetH = maxH
		targetW = int(float64(targetW) * ratio)
	}
	return max(targetW, 1), max(targetH, 1)
}

func scale(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// CatmullRom gives Lanczos-like quality when downscaling.
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// reduceToFitSize lowers quality until the encoding fits maxSize, bottoming
// out at MinQuality.
func reduceToFitSize(img image.Image, startQuality int, maxSize int64) ([]byte, error) {
	for quality := startQuality; quality >= MinQuality; quality = int(float64(quality) * QualityDecay) {
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if int64(len(encoded)) <= maxSize {
			return encoded, nil
		}
	}
	return encodeJPEG(img, MinQuality)
}
