package assets

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

var ErrPixelDataSize = errors.New("pixel data does not match the image extent")

// RGBAImage wraps tightly packed RGBA8 rows, as read back from an
// R8G8B8A8 image or buffer, without copying.
func RGBAImage(width, height int, pixels []byte) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrPixelDataSize, width, height)
	}
	if len(pixels) < width*height*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelDataSize, len(pixels), width, height)
	}
	return &image.RGBA{
		Pix:    pixels[:width*height*4],
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// WriteBMP encodes RGBA8 pixels as a BMP image.
func WriteBMP(w io.Writer, width, height int, pixels []byte) error {
	img, err := RGBAImage(width, height, pixels)
	if err != nil {
		return err
	}
	return bmp.Encode(w, img)
}

// SaveBMP writes RGBA8 pixels to path, creating parent directories.
func SaveBMP(path string, width, height int, pixels []byte) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteBMP(f, width, height, pixels)
}
