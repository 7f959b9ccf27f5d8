package image

import (
	"errors"
	"fmt"
	"image"

	"gonum.org/v1/gonum/mat"

	"ortholabel/pkg/colorutil"
)

// Encoding describes how Raster intensities are stored.
type Encoding int

const (
	// EncodingUint8 holds values in 0..255 decoded from an 8-bit image.
	EncodingUint8 Encoding = iota
	// EncodingFloat holds floating point values, either already normalized
	// to 0..1 or on a 0..255 scale.
	EncodingFloat
)

func (e Encoding) String() string {
	switch e {
	case EncodingUint8:
		return "uint8"
	case EncodingFloat:
		return "float"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Raster is a three channel RGB image with interleaved float32 samples.
// Pixel (x, y) occupies Pix[3*(y*Width+x) : 3*(y*Width+x)+3].
type Raster struct {
	Width    int
	Height   int
	Pix      []float32
	Encoding Encoding
}

// NewRaster wraps interleaved RGB samples.
func NewRaster(width, height int, pix []float32, enc Encoding) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("raster %dx%d needs %d samples, got %d", width, height, width*height*3, len(pix))
	}
	return &Raster{Width: width, Height: height, Pix: pix, Encoding: enc}, nil
}

// FromImage converts an 8-bit image into a uint8-encoded raster. Alpha is
// dropped; gray images are replicated across the three channels.
func FromImage(img image.Image) *Raster {
	rgb := ToRGB(img)
	w, h := rgb.Rect.Dx(), rgb.Rect.Dy()
	pix := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		row := rgb.Pix[y*rgb.Stride:]
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			pix[o] = float32(row[x*4])
			pix[o+1] = float32(row[x*4+1])
			pix[o+2] = float32(row[x*4+2])
		}
	}
	return &Raster{Width: w, Height: h, Pix: pix, Encoding: EncodingUint8}
}

// At returns the stored RGB samples at (x, y).
func (r *Raster) At(x, y int) (float32, float32, float32) {
	o := (y*r.Width + x) * 3
	return r.Pix[o], r.Pix[o+1], r.Pix[o+2]
}

// Max returns the largest stored sample.
func (r *Raster) Max() float32 {
	var m float32
	for _, v := range r.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// NormalizeFactor returns the divisor that maps this raster into 0..1.
func (r *Raster) NormalizeFactor() float64 {
	if r.Encoding == EncodingUint8 {
		return colorutil.NormalizeFactor(true, 0)
	}
	return colorutil.NormalizeFactor(false, float64(r.Max()))
}

// Lab converts the raster to CIE L*a*b*. The result has one row per pixel in
// row-major order and columns L, a, b.
func (r *Raster) Lab() (*mat.Dense, error) {
	n := r.Width * r.Height
	if n == 0 || len(r.Pix) != n*3 {
		return nil, errors.New("raster has no pixels")
	}

	div := r.NormalizeFactor()
	data := make([]float64, n*3)
	for i := 0; i < n; i++ {
		o := i * 3
		l, a, b := colorutil.RGBToLab(
			float64(r.Pix[o])/div,
			float64(r.Pix[o+1])/div,
			float64(r.Pix[o+2])/div,
		)
		data[o], data[o+1], data[o+2] = l, a, b
	}
	return mat.NewDense(n, 3, data), nil
}
