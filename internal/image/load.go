// Package image provides image loading, saving and the float raster used by
// segmentation and region descriptors.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ortholabel/pkg/fsutil"
)

// Format identifies an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatWebP Format = "webp"
)

// ParseFormat maps a user supplied name (with or without dot) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "png", "":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", name)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Load decodes an image file and reduces it to opaque RGB: alpha and extra
// channels are dropped, grayscale is replicated across three channels.
func Load(path string) (*image.NRGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Decode reads an image from r (PNG, JPEG, TIFF or WebP) and converts it to
// opaque RGB.
func Decode(r io.Reader) (*image.NRGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// The x/image decoder does not handle every WebP variant.
		if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return ToRGB(wimg), nil
		}
		return nil, err
	}
	return ToRGB(img), nil
}

// ToRGB copies img into an opaque NRGBA with bounds starting at (0,0).
// Gray sources come out with R=G=B; alpha is discarded.
func ToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Save encodes img to path in the given format. The file is written to a
// temporary sibling first and renamed into place.
func Save(img image.Image, path string, format Format, quality int) error {
	err := fsutil.WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, img, format, quality)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	switch format {
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return imaging.Encode(w, img, imaging.PNG)
	}
}

// SupportedFormats returns the list of accepted upload extensions.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsTIFF reports whether path names a TIFF file.
func IsTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
