package walkcrop

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder turns an encoded image into pixels.
type Decoder interface {
	Decode(r io.Reader) (image.Image, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(r io.Reader) (image.Image, error)

func (f DecoderFunc) Decode(r io.Reader) (image.Image, error) { return f(r) }

// DefaultDecoder decodes PNG, JPEG, GIF, BMP, TIFF and WebP and applies the
// EXIF orientation, so pixels match what a browser shows for the file.
var DefaultDecoder Decoder = DecoderFunc(func(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
})

// Decode reads an image with dec, wrapping failures in ErrDecode. A nil dec
// means DefaultDecoder.
func Decode(dec Decoder, r io.Reader) (image.Image, error) {
	if dec == nil {
		dec = DefaultDecoder
	}
	img, err := dec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return img, nil
}

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: canvas is empty", ErrEncode)
	}
	if err := pngEncoder.Encode(w, img); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}
