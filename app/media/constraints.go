package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
)

// Upload limits shared by the HTTP layer and the stager.
const (
	MaxImageBytes  = int64(10 << 20)  // 10 MB
	MaxVideoBytes  = int64(100 << 20) // 100 MB
	MaxImagePixels = 40_000_000       // e.g. 8000x5000
)

var (
	ErrFileTooLarge  = errors.New("file exceeds the upload size limit")
	ErrImageTooLarge = errors.New("image exceeds the pixel limit")
)

// CheckSize rejects a file of size bytes that is over the limit for its kind
func CheckSize(kind ResourceType, size int64) error {
	limit := MaxImageBytes
	if kind == ResourceVideo {
		limit = MaxVideoBytes
	}
	if size > limit {
		return fmt.Errorf("%s of %d bytes, limit %d: %w", kind, size, limit, ErrFileTooLarge)
	}
	return nil
}

// CheckImage reads only the image header and rejects images whose decoded
// size would exceed MaxImagePixels. Data in an unknown format passes.
func CheckImage(blob Blob) error {
	return checkPixels(blob, MaxImagePixels)
}

func checkPixels(blob Blob, maxPixels int) error {
	config, _, err := image.DecodeConfig(bytes.NewReader(blob.Data))
	if err != nil {
		return nil
	}

	if int64(config.Width)*int64(config.Height) > int64(maxPixels) {
		return fmt.Errorf("%s is %dx%d pixels, limit %d: %w", blob.Name, config.Width, config.Height, maxPixels, ErrImageTooLarge)
	}
	return nil
}
