package render

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"image"
	"image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/layout"
)

// qrPixels is the minimum side of the rasterized symbol
const qrPixels = 256

// EncodeQR rasterizes payload as an 8-bit grayscale PNG
func EncodeQR(payload string) ([]byte, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	side := code.Bounds().Dx()
	scale := (qrPixels + side - 1) / side
	scaled, err := barcode.Scale(code, side*scale, side*scale)
	if err != nil {
		return nil, err
	}

	// gofpdf does not embed 16-bit PNGs
	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *composer) qr(v layout.QRCode, x, y, w float64) {
	name, ok := c.qrs[v.Payload]
	if !ok {
		data, err := EncodeQR(v.Payload)
		if err != nil {
			c.e.log.Warn("qr code skipped", zap.Int("payload_len", len(v.Payload)), zap.Error(err))
		} else {
			sum := sha1.Sum([]byte(v.Payload))
			name = "qr-" + hex.EncodeToString(sum[:8])
			c.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		}
		c.qrs[v.Payload] = name
	}
	if name == "" {
		return
	}
	c.pdf.ImageOptions(name, alignX(v.Align, x, w, v.Size), y, v.Size, v.Size, false,
		gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}
