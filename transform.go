package walkcrop

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/sebnyberg/walkcrop/canvasx"
)

// SafeSide is the side of a square that holds a w x h image rotated about
// its centre by any angle: the diagonal of the longest side's square,
// rounded up to an even number of pixels.
func SafeSide(w, h int) int {
	return 2 * int(math.Ceil(float64(max(w, h))/2*math.Sqrt2))
}

// Transform rotates src, cuts req.Region out of it and, in Fit mode,
// letterboxes the cut onto TargetCanvas.
//
// The source is drawn rotated about its centre on a square working canvas of
// SafeSide pixels. The working raster is then placed on a region-sized
// canvas so that req.Region.Min, measured from the top-left corner of the
// unrotated, centred source, lands at the origin.
func Transform(src image.Image, req Request) (*image.RGBA, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	side := SafeSide(b.Dx(), b.Dy())

	cv, err := canvasx.New(side, side)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderContext, err)
	}
	half := float64(side) / 2
	cv.Translate(half, half)
	cv.Rotate(req.Rotation * math.Pi / 180)
	cv.Translate(-half, -half)
	cv.DrawImage(src, half-w*0.5, half-h*0.5)
	work := cv.Image()

	if err := cv.SetSize(req.Region.Dx(), req.Region.Dy()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderContext, err)
	}
	cv.PutImageData(work,
		roundHalfUp(-half+w*0.5-float64(req.Region.Min.X)),
		roundHalfUp(-half+h*0.5-float64(req.Region.Min.Y)),
	)

	if req.Mode == Fit {
		return Letterbox(cv.Image())
	}
	return cv.Image(), nil
}

// Background fills the letterbox bars.
var Background color.Color = color.White

// Letterbox scales src uniformly to fit inside TargetCanvas and centres it on
// a white frame. The scale factor is not capped, so sources smaller than the
// frame are enlarged until one axis touches its edges.
func Letterbox(src image.Image) (*image.RGBA, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty source %v", ErrInvalidCrop, b)
	}
	cv, err := canvasx.New(TargetWidth, TargetHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderContext, err)
	}
	cv.FillRect(0, 0, TargetWidth, TargetHeight, Background)

	x, y, sw, sh := letterboxRect(b.Dx(), b.Dy())
	cv.DrawImageScaled(src, x, y, sw, sh)
	return cv.Image(), nil
}

// letterboxRect returns where a w x h image lands inside TargetCanvas.
func letterboxRect(w, h int) (x, y, sw, sh float64) {
	s := math.Min(float64(TargetWidth)/float64(w), float64(TargetHeight)/float64(h))
	sw, sh = float64(w)*s, float64(h)*s
	return (TargetWidth - sw) / 2, (TargetHeight - sh) / 2, sw, sh
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
