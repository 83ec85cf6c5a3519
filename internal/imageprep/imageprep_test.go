package imageprep

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return path
}

func writePNG(t *testing.T, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format, "prepared output is always JPEG")
	return cfg.Width, cfg.Height
}

func TestPrepareShrinksToMaxSide(t *testing.T) {
	path := writeJPEG(t, "wide.jpg", 4000, 2000)

	data, w, h, err := Prepare(path, Options{MaxSide: 1080})
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 540, h)

	gotW, gotH := decodeSize(t, data)
	assert.Equal(t, w, gotW)
	assert.Equal(t, h, gotH)
}

func TestPrepareKeepsSmallImages(t *testing.T) {
	path := writeJPEG(t, "small.jpg", 640, 480)

	_, w, h, err := Prepare(path, Options{MaxSide: 1080})
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestPrepareCropsIntoAspectBand(t *testing.T) {
	storyOpts := Options{
		MaxSide:        1080,
		MinAspectRatio: 9.0 / 16.0,
		MaxAspectRatio: 90.0 / 47.0,
		MaxWidth:       1080,
		MaxHeight:      1920,
	}

	t.Run("too tall", func(t *testing.T) {
		path := writeJPEG(t, "tall.jpg", 500, 2000)

		_, w, h, err := Prepare(path, storyOpts)
		require.NoError(t, err)
		ratio := float64(w) / float64(h)
		assert.GreaterOrEqual(t, ratio, 9.0/16.0-0.01)
		assert.Equal(t, 500, w, "width is kept when cropping height")
	})

	t.Run("too wide", func(t *testing.T) {
		path := writeJPEG(t, "panorama.jpg", 2000, 500)

		_, w, h, err := Prepare(path, storyOpts)
		require.NoError(t, err)
		ratio := float64(w) / float64(h)
		assert.LessOrEqual(t, ratio, 90.0/47.0+0.01)
	})

	t.Run("in band untouched", func(t *testing.T) {
		path := writeJPEG(t, "portrait.jpg", 1080, 1920)

		_, w, h, err := Prepare(path, storyOpts)
		require.NoError(t, err)
		assert.Equal(t, 1080, w)
		assert.Equal(t, 1920, h)
	})
}

func TestPrepareReencodesPNG(t *testing.T) {
	path := writePNG(t, "graphic.png", 300, 300)

	data, _, _, err := Prepare(path, Options{MaxSide: 1080})
	require.NoError(t, err)
	decodeSize(t, data)
}

func TestPrepareMissingFile(t *testing.T) {
	_, _, _, err := Prepare(filepath.Join(t.TempDir(), "nope.jpg"), Options{})
	assert.Error(t, err)
}

func TestDimensions(t *testing.T) {
	path := writeJPEG(t, "photo.jpg", 123, 456)

	w, h, err := Dimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 123, w)
	assert.Equal(t, 456, h)
}
