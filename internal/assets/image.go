package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension bounds the longest side of a stored logo, in pixels
const MaxDimension = 1024

// ErrUnsupportedImage is returned for formats the PDF engine cannot embed
var ErrUnsupportedImage = errors.New("unsupported image format")

// Image is a decoded logo ready for embedding
type Image struct {
	Name   string
	Type   string // "PNG" or "JPG"
	Data   []byte
	Width  int
	Height int
}

// DecodeImage validates raw image bytes. JPEGs are kept as they are; every
// other format is re-encoded as an 8-bit PNG and large images are scaled down.
func DecodeImage(name string, data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedImage)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%s: empty image", name)
	}

	if format == "jpeg" && cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return &Image{Name: name, Type: "JPG", Data: data, Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	dst := normalize(src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	b := dst.Bounds()
	return &Image{Name: name, Type: "PNG", Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

func normalize(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > MaxDimension || h > MaxDimension {
		if w >= h {
			h = max(1, h*MaxDimension/w)
			w = MaxDimension
		} else {
			w = max(1, w*MaxDimension/h)
			h = MaxDimension
		}
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		return dst
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
