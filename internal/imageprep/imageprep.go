// Package imageprep re-encodes local photos into upload-ready JPEG bytes,
// constraining size and aspect ratio to what the platform accepts.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	// webp files can be read for dimensions and preparation but are always
	// re-encoded to JPEG on the way out.
	_ "golang.org/x/image/webp"
)

// Options constrain the prepared output.
type Options struct {
	// MaxSide caps the longest image side in pixels. Zero means uncapped.
	MaxSide int
	// MinAspectRatio / MaxAspectRatio bound width/height. Images outside
	// the band are center-cropped into it. Zero values disable the band.
	MinAspectRatio float64
	MaxAspectRatio float64
	// MaxWidth / MaxHeight cap the absolute output size.
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, defaulting to 80.
	Quality int
}

// Prepare loads the image at path, fits it into opts, and returns the
// re-encoded JPEG bytes with the output pixel dimensions.
func Prepare(path string, opts Options) ([]byte, int, int, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open image: %w", err)
	}

	img = fit(img, opts)

	quality := opts.Quality
	if quality == 0 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}

	bounds := img.Bounds()
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

func fit(img image.Image, opts Options) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if opts.MinAspectRatio > 0 && opts.MaxAspectRatio > 0 {
		ratio := float64(width) / float64(height)
		if ratio < opts.MinAspectRatio {
			// Too tall: crop height until the ratio is in band.
			height = int(float64(width) / opts.MinAspectRatio)
			img = imaging.CropCenter(img, width, height)
		} else if ratio > opts.MaxAspectRatio {
			// Too wide: crop width until the ratio is in band.
			width = int(float64(height) * opts.MaxAspectRatio)
			img = imaging.CropCenter(img, width, height)
		}
	}

	if opts.MaxSide > 0 && (width > opts.MaxSide || height > opts.MaxSide) {
		img = imaging.Fit(img, opts.MaxSide, opts.MaxSide, imaging.Lanczos)
	}

	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		bounds = img.Bounds()
		if bounds.Dx() > opts.MaxWidth || bounds.Dy() > opts.MaxHeight {
			img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
		}
	}

	return img
}

// Dimensions decodes just enough of the file at path to report its pixel
// size without loading the pixels.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	return cfg.Width, cfg.Height, nil
}
