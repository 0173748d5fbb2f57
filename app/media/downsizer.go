package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 1200
	DefaultQuality  = 80
)

// Downsizer constrains images to a maximum width and re-encodes them as JPEG
type Downsizer struct {
	maxWidth  int
	quality   int
	maxPixels int
}

func NewDownsizer(maxWidth, quality int) *Downsizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Downsizer{maxWidth: maxWidth, quality: quality, maxPixels: MaxImagePixels}
}

func (d *Downsizer) Run(blob Blob) (Blob, error) {
	if len(blob.Data) == 0 {
		return Blob{}, fmt.Errorf("image data is empty")
	}

	// Decoding allocates the full bitmap, so the header is checked first
	if err := checkPixels(blob, d.maxPixels); err != nil {
		return Blob{}, err
	}

	src, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return Blob{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > d.maxWidth {
		height = max(1, height*d.maxWidth/width)
		width = d.maxWidth
	}

	// JPEG has no alpha channel, transparent pixels become white
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	if width == bounds.Dx() {
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: d.quality}); err != nil {
		return Blob{}, fmt.Errorf("failed to encode image: %w", err)
	}

	return Blob{
		Name:        jpegName(blob.Name),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func jpegName(name string) string {
	if name == "" {
		return "image.jpg"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}
