// Package imaging turns uploaded image bytes into classifier input tensors.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/artifact"
)

// DefaultMaxPixels bounds width*height of an upload before it is decoded.
const DefaultMaxPixels = 40_000_000

// Options configures a Decoder.
type Options struct {
	Width      int
	Height     int
	Layout     artifact.Layout
	PixelRange artifact.PixelRange
	MaxPixels  int
}

// Decoder decodes and normalizes images. It is stateless and safe for concurrent use.
type Decoder struct {
	opts Options
}

// NewDecoder creates a Decoder. Zero MaxPixels uses DefaultMaxPixels.
func NewDecoder(opts Options) *Decoder {
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Layout == "" {
		opts.Layout = artifact.NHWC
	}
	if opts.PixelRange == "" {
		opts.PixelRange = artifact.Raw
	}
	return &Decoder{opts: opts}
}

// NewDecoderForManifest creates a Decoder matching the artifact's input contract.
func NewDecoderForManifest(m *artifact.Manifest, maxPixels int) *Decoder {
	return NewDecoder(Options{
		Width:      m.Width(),
		Height:     m.Height(),
		Layout:     m.Layout,
		PixelRange: m.PixelRange,
		MaxPixels:  maxPixels,
	})
}

// Decode parses data in any registered format and normalizes it to the configured size.
// Every failure wraps domain.ErrInvalidImage.
func (d *Decoder) Decode(data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image %dx%d", domain.ErrInvalidImage, format, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > d.opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			domain.ErrInvalidImage, cfg.Width, cfg.Height, d.opts.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
	}

	t := d.normalize(img)
	t.source = Source{Format: format, Width: cfg.Width, Height: cfg.Height}
	return t, nil
}

// normalize resizes img, drops alpha and lays it out as float32.
// Resampling runs on premultiplied color so transparent pixels do not bleed.
func (d *Decoder) normalize(img image.Image) *Tensor {
	resized := resize.Resize(uint(d.opts.Width), uint(d.opts.Height), toPremultiplied(img), resize.Bicubic)
	pix := toRGB(resized)

	w, h := d.opts.Width, d.opts.Height
	data := make([]float32, w*h*artifact.Channels)
	scale := float32(1)
	if d.opts.PixelRange == artifact.Unit {
		scale = 1.0 / 255
	}

	plane := w * h
	for y := 0; y < h; y++ {
		row := pix.Pix[y*pix.Stride : y*pix.Stride+w*4]
		for x := 0; x < w; x++ {
			r := float32(row[x*4]) * scale
			g := float32(row[x*4+1]) * scale
			b := float32(row[x*4+2]) * scale
			if d.opts.Layout == artifact.NCHW {
				i := y*w + x
				data[i] = r
				data[plane+i] = g
				data[2*plane+i] = b
			} else {
				i := (y*w + x) * artifact.Channels
				data[i] = r
				data[i+1] = g
				data[i+2] = b
			}
		}
	}

	shape := []int64{1, int64(h), int64(w), artifact.Channels}
	if d.opts.Layout == artifact.NCHW {
		shape = []int64{1, artifact.Channels, int64(h), int64(w)}
	}
	return &Tensor{shape: shape, layout: d.opts.Layout, data: data}
}

// toPremultiplied returns img as a zero-origin, alpha-premultiplied RGBA image.
func toPremultiplied(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// toRGB returns an opaque, zero-origin RGBA copy of img. Alpha is dropped, not
// composited: color is un-premultiplied, so a fully transparent pixel becomes black.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			off := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[off] = c.R
			dst.Pix[off+1] = c.G
			dst.Pix[off+2] = c.B
			dst.Pix[off+3] = 0xff
		}
	}
	return dst
}
