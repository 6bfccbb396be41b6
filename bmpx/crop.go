// Package bmpx copies a rectangular region out of an uncompressed BMP
// without decoding it.
package bmpx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

var (
	ErrUnsupported = errors.New("bmp: unsupported format")
	ErrOutOfBounds = errors.New("bmp: region out of bounds")
	ErrAlpha       = errors.New("bmp: alpha channel not supported")
)

const (
	fileHeaderLen   = 14
	infoHeaderLen   = 40
	v4InfoHeaderLen = 108
	v5InfoHeaderLen = 124
	maxPaletteLen   = 256 * 4

	// MaxHeaderLen is the largest number of bytes ReadHeader consumes.
	MaxHeaderLen = fileHeaderLen + v5InfoHeaderLen + maxPaletteLen
)

// Header is the decoded part of a BMP header. Raw holds every byte before
// the pixel array (file header, info header and palette) so it can be
// rewritten for a cropped image.
type Header struct {
	Width        int
	Height       int
	BitsPerPixel int
	TopDown      bool
	Alpha        bool
	Raw          []byte
}

// RowBytes is the length of one pixel row of width pixels, including the
// padding that keeps rows 4-byte aligned.
func (h Header) RowBytes(width int) int {
	return ((width*h.BitsPerPixel + 31) / 32) * 4
}

// CropFile crops the provided region of the BMP found at srcPath to a BMP at
// dstPath. For more info, see Crop().
func CropFile(srcPath, dstPath string, region image.Rectangle) (err error) {
	srcPath = filepath.Clean(srcPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open file %q err, %w", srcPath, err)
	}
	defer func() { err = multierr.Append(err, src.Close()) }()
	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_TRUNC|os.O_CREATE, 0640)
	if err != nil {
		return fmt.Errorf("open file %q err, %w", dstPath, err)
	}
	defer func() { err = multierr.Append(err, dst.Close()) }()
	return Crop(src, dst, region)
}

// Crop copies the provided region of the BMP found in the input stream to
// the output stream as a BMP of the same pixel format and row order.
//
// The input must be uncompressed, 8, 24 or 32 bits per pixel, and without an
// alpha channel. The region must lie inside the image.
//
// Only one row is held in memory at a time. If src is an io.Seeker, bytes
// outside the region are skipped by seeking instead of reading, so cost
// scales with the number of cropped rows rather than the image size.
func Crop(src io.Reader, dst io.Writer, region image.Rectangle) error {
	hdr, err := ReadHeader(src)
	if err != nil {
		return err
	}
	if hdr.Alpha {
		return ErrAlpha
	}
	dim := image.Rect(0, 0, hdr.Width, hdr.Height)
	if region.Empty() || !region.In(dim) {
		return fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, region, dim)
	}

	rowBytes := hdr.RowBytes(hdr.Width)
	outRowBytes := hdr.RowBytes(region.Dx())
	imageSize := outRowBytes * region.Dy()
	height := int32(region.Dy())
	if hdr.TopDown {
		height = -height
	}
	out := hdr.Raw
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(out)+imageSize))
	binary.LittleEndian.PutUint32(out[18:22], uint32(region.Dx()))
	binary.LittleEndian.PutUint32(out[22:26], uint32(height))
	binary.LittleEndian.PutUint32(out[34:38], uint32(imageSize))
	if _, err := dst.Write(out); err != nil {
		return err
	}

	// Seek if possible, otherwise copy to discard
	var skip func(n int) error
	if s, ok := src.(io.Seeker); ok {
		skip = func(n int) error {
			_, err := s.Seek(int64(n), io.SeekCurrent)
			return err
		}
	} else {
		skip = func(n int) error {
			_, err := io.CopyN(io.Discard, src, int64(n))
			return err
		}
	}

	// Rows before the region in file order. Bottom-up files start with the
	// last image row.
	before := region.Min.Y
	if !hdr.TopDown {
		before = hdr.Height - region.Max.Y
	}
	if err := skip(rowBytes * before); err != nil {
		return err
	}

	bytesPerPixel := hdr.BitsPerPixel / 8
	left := region.Min.X * bytesPerPixel
	mid := region.Dx() * bytesPerPixel
	right := rowBytes - left - mid

	// The tail of row stays zero and becomes the output row padding.
	row := make([]byte, outRowBytes)
	for i := 0; i < region.Dy(); i++ {
		if err := skip(left); err != nil {
			return err
		}
		if _, err := io.ReadFull(src, row[:mid]); err != nil {
			return fmt.Errorf("read row %d err, %w", i, err)
		}
		if _, err := dst.Write(row); err != nil {
			return err
		}
		if i < region.Dy()-1 {
			if err := skip(right); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadHeader reads the BMP header and palette from r, leaving r at the start
// of the pixel array.
//
// Header parsing follows golang.org/x/image/bmp, which does not expose the
// raw bytes.
func ReadHeader(r io.Reader) (Header, error) {
	var hdr Header
	b := make([]byte, MaxHeaderLen)
	if _, err := io.ReadFull(r, b[:fileHeaderLen+4]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return hdr, err
	}
	if string(b[:2]) != "BM" {
		return hdr, fmt.Errorf("%w: not a BMP", ErrUnsupported)
	}
	offset := int(binary.LittleEndian.Uint32(b[10:14]))
	infoLen := int(binary.LittleEndian.Uint32(b[14:18]))
	if infoLen != infoHeaderLen && infoLen != v4InfoHeaderLen && infoLen != v5InfoHeaderLen {
		return hdr, fmt.Errorf("%w: info header length %d", ErrUnsupported, infoLen)
	}
	if _, err := io.ReadFull(r, b[fileHeaderLen+4:fileHeaderLen+infoLen]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return hdr, err
	}

	hdr.Width = int(int32(binary.LittleEndian.Uint32(b[18:22])))
	hdr.Height = int(int32(binary.LittleEndian.Uint32(b[22:26])))
	if hdr.Height < 0 {
		hdr.Height, hdr.TopDown = -hdr.Height, true
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return hdr, fmt.Errorf("%w: size %dx%d", ErrUnsupported, hdr.Width, hdr.Height)
	}

	planes := binary.LittleEndian.Uint16(b[26:28])
	bpp := binary.LittleEndian.Uint16(b[28:30])
	compression := binary.LittleEndian.Uint32(b[30:34])
	// BI_BITFIELDS with the default masks is laid out like BI_RGB.
	if compression == 3 && infoLen > infoHeaderLen &&
		binary.LittleEndian.Uint32(b[54:58]) == 0xff0000 &&
		binary.LittleEndian.Uint32(b[58:62]) == 0xff00 &&
		binary.LittleEndian.Uint32(b[62:66]) == 0xff &&
		binary.LittleEndian.Uint32(b[66:70]) == 0xff000000 {
		compression = 0
	}
	if planes != 1 || compression != 0 {
		return hdr, fmt.Errorf("%w: planes %d, compression %d", ErrUnsupported, planes, compression)
	}

	end := fileHeaderLen + infoLen
	switch bpp {
	case 8:
		colors := int(binary.LittleEndian.Uint32(b[46:50]))
		if colors == 0 {
			colors = 256
		}
		if colors > 256 || offset != end+colors*4 {
			return hdr, fmt.Errorf("%w: palette of %d colors at offset %d", ErrUnsupported, colors, offset)
		}
		if _, err := io.ReadFull(r, b[end:offset]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return hdr, err
		}
	case 24, 32:
		if offset != end {
			return hdr, fmt.Errorf("%w: pixel offset %d", ErrUnsupported, offset)
		}
		// Only headers newer than BITMAPINFOHEADER carry an alpha mask that
		// decoders honour.
		hdr.Alpha = bpp == 32 && infoLen > infoHeaderLen
	default:
		return hdr, fmt.Errorf("%w: %d bits per pixel", ErrUnsupported, bpp)
	}
	hdr.BitsPerPixel = int(bpp)
	hdr.Raw = b[:offset]
	return hdr, nil
}
