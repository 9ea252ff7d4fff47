package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/crypto/sha3"
)

const (
	// fingerprintSize is the edge length of the normalized thumbnail.
	fingerprintSize = 16

	// quantizeShift drops the low bits of every thumbnail pixel.
	quantizeShift = 3

	// maxPixels rejects images whose decoded size would exhaust memory.
	maxPixels = 100_000_000
)

// Decoded describes an image that was fingerprinted.
type Decoded struct {
	Format string
	Width  int
	Height int
}

// Fingerprint returns the content hash of an encoded image.
func Fingerprint(data []byte) (string, Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", Decoded{}, fmt.Errorf("%w: %w", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", Decoded{}, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return "", Decoded{}, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", Decoded{}, fmt.Errorf("%w: %w", ErrNotImage, err)
	}

	return fingerprintImage(img), Decoded{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// fingerprintImage hashes an already decoded image.
func fingerprintImage(img image.Image) string {
	b := img.Bounds()

	// Convert first so every source type goes through the same Gray->Gray
	// scaler and identical pixels always give identical thumbnails.
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	thumb := image.NewGray(image.Rect(0, 0, fingerprintSize, fingerprintSize))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	quantized := make([]byte, 0, fingerprintSize*fingerprintSize)
	for y := range fingerprintSize {
		row := thumb.Pix[y*thumb.Stride : y*thumb.Stride+fingerprintSize]
		for _, v := range row {
			quantized = append(quantized, v>>quantizeShift)
		}
	}

	sum := sha3.Sum256(quantized)
	return hex.EncodeToString(sum[:])
}
