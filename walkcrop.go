// Package walkcrop turns a user-chosen region of a photo into the hero image
// of a walk score infographic.
//
// The pipeline rotates the source about its own centre on an oversized
// working canvas, cuts the requested region out of it and, in Fit mode,
// letterboxes the cut onto a white 550x280 frame. The result is written as
// PNG.
package walkcrop

import (
	"fmt"
	"image"
	"io"
	"math"
	"strings"
)

// Dimensions of the hero image frame used by Fit mode. The interactive crop
// box is locked to the same aspect ratio in Fill mode.
const (
	TargetWidth  = 550
	TargetHeight = 280
)

// TargetCanvas is the frame produced by Fit mode.
var TargetCanvas = image.Rect(0, 0, TargetWidth, TargetHeight)

// Mode selects how the cropped region becomes the output image.
type Mode int

const (
	// Fill outputs the region at its own pixel size.
	Fill Mode = iota
	// Fit scales the region to fit inside TargetCanvas and pads the rest
	// with white.
	Fit
)

func (m Mode) String() string {
	switch m {
	case Fill:
		return "fill"
	case Fit:
		return "fit"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses "fill" or "fit", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fill":
		return Fill, nil
	case "fit":
		return Fit, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if m != Fill && m != Fit {
		return nil, fmt.Errorf("unknown mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Request describes one crop. Region is expressed in source pixels and may
// extend past the source bounds; pixels outside the source come out
// transparent. Rotation is in degrees, clockwise, about the source centre,
// and is applied before the region is cut.
type Request struct {
	Region   image.Rectangle
	Rotation float64
	Mode     Mode
}

// Validate reports ErrInvalidCrop for an empty region, a non-finite rotation
// or an unknown mode.
func (r Request) Validate() error {
	if r.Region.Dx() <= 0 || r.Region.Dy() <= 0 {
		return fmt.Errorf("%w: empty region %v", ErrInvalidCrop, r.Region)
	}
	if math.IsNaN(r.Rotation) || math.IsInf(r.Rotation, 0) {
		return fmt.Errorf("%w: rotation %v", ErrInvalidCrop, r.Rotation)
	}
	if r.Mode != Fill && r.Mode != Fit {
		return fmt.Errorf("%w: %v", ErrInvalidCrop, r.Mode)
	}
	return nil
}

// OutputSize is the size of the image a request produces.
func (r Request) OutputSize() image.Point {
	if r.Mode == Fit {
		return TargetCanvas.Size()
	}
	return r.Region.Size()
}

var _ Cropper = new(ImageCropper)

type Cropper interface {
	// Crop crops the requested region out of an image and writes the result
	// as PNG to the provided writer
	Crop(req Request, to io.Writer) error
}
