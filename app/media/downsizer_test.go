package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBlob(t *testing.T, width, height int) Blob {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return Blob{Name: "photo.png", ContentType: "image/png", Data: buf.Bytes()}
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestDownsizerConstrainsWidth(t *testing.T) {
	out, err := NewDownsizer(1200, 80).Run(pngBlob(t, 2400, 1000))
	require.NoError(t, err)

	assert.Equal(t, "photo.jpg", out.Name)
	assert.Equal(t, "image/jpeg", out.ContentType)

	bounds := decodeJPEG(t, out.Data).Bounds()
	assert.Equal(t, 1200, bounds.Dx())
	assert.Equal(t, 500, bounds.Dy())
}

func TestDownsizerKeepsSmallImageSize(t *testing.T) {
	out, err := NewDownsizer(1200, 80).Run(pngBlob(t, 640, 480))
	require.NoError(t, err)

	bounds := decodeJPEG(t, out.Data).Bounds()
	assert.Equal(t, 640, bounds.Dx())
	assert.Equal(t, 480, bounds.Dy())
}

func TestDownsizerRejectsUndecodableData(t *testing.T) {
	_, err := NewDownsizer(1200, 80).Run(Blob{Name: "x.png", Data: []byte("not an image")})
	assert.Error(t, err)

	_, err = NewDownsizer(1200, 80).Run(Blob{Name: "empty.png"})
	assert.Error(t, err)
}

func TestNewDownsizerDefaults(t *testing.T) {
	d := NewDownsizer(0, 0)
	assert.Equal(t, DefaultMaxWidth, d.maxWidth)
	assert.Equal(t, DefaultQuality, d.quality)
}

func TestDownsizerRejectsTallImageBeforeDecoding(t *testing.T) {
	d := NewDownsizer(1200, 80)
	d.maxPixels = 10 * 500

	// Narrow enough to pass the width limit, too many pixels overall
	_, err := d.Run(pngBlob(t, 10, 600))
	require.ErrorIs(t, err, ErrImageTooLarge)

	_, err = d.Run(pngBlob(t, 10, 500))
	assert.NoError(t, err)
}
