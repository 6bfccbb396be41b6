// Package session holds the state of the crop dialog: how the photo is
// panned, zoomed and rotated under a fixed crop box, and which source pixels
// that box covers.
package session

import (
	"fmt"
	"image"
	"math"

	"github.com/sebnyberg/walkcrop"
)

// Control ranges of the dialog.
const (
	MinZoom     = 1.0
	MaxZoom     = 3.0
	ZoomStep    = 0.1
	MaxRotation = 360.0
	// MaxContainer bounds each side of the dialog, in display pixels.
	MaxContainer = 4096.0
)

// FitAspect is the crop box aspect ratio in Fit mode, where the box is not
// locked to the output frame.
const FitAspect = 4.0 / 3.0

type Point struct {
	X, Y float64
}

type Size struct {
	W, H float64
}

// Session is one crop dialog. It is not safe for concurrent use.
type Session struct {
	pan      Point
	zoom     float64
	rotation float64
	mode     walkcrop.Mode

	natural   image.Point
	container Size

	area    image.Rectangle
	hasArea bool
}

// New returns a session in its initial state.
func New() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// SetMedia records the natural size of the photo.
func (s *Session) SetMedia(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid media size %dx%d", width, height)
	}
	s.natural = image.Pt(width, height)
	s.update()
	return nil
}

// SetContainer records the size of the area the photo is shown in. Each
// side must be in (0, MaxContainer].
func (s *Session) SetContainer(width, height float64) error {
	if !(width > 0 && height > 0 && width <= MaxContainer && height <= MaxContainer) {
		return fmt.Errorf("invalid container size %vx%v", width, height)
	}
	s.container = Size{width, height}
	s.update()
	return nil
}

// SetPan moves the photo relative to the centred position. The offset is
// limited so the photo always covers the crop box.
func (s *Session) SetPan(x, y float64) {
	s.pan = Point{x, y}
	s.update()
}

// SetZoom clamps z to [MinZoom, MaxZoom] and snaps it to ZoomStep.
func (s *Session) SetZoom(z float64) {
	if math.IsNaN(z) {
		return
	}
	z = math.Round(z/ZoomStep) * ZoomStep
	s.zoom = math.Min(MaxZoom, math.Max(MinZoom, z))
	s.update()
}

// SetRotation sets the slider value, clamped to [0, MaxRotation] and snapped
// to whole degrees.
func (s *Session) SetRotation(deg float64) {
	if math.IsNaN(deg) {
		return
	}
	s.rotation = math.Min(MaxRotation, math.Max(0, math.Round(deg)))
	s.update()
}

// SetAngle sets the rotation to any finite number of degrees, as left behind
// by a mix of slider moves and quarter turns. Unlike SetRotation it neither
// clamps nor snaps.
func (s *Session) SetAngle(deg float64) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return
	}
	s.rotation = deg
	s.update()
}

// Rotate adds delta degrees, as the quarter turn buttons do. The result keeps
// the sign of the sum, so rotating left from 0 gives -90.
func (s *Session) Rotate(delta float64) {
	s.rotation = math.Mod(s.rotation+delta, 360)
	s.update()
}

func (s *Session) SetMode(m walkcrop.Mode) {
	s.mode = m
	s.update()
}

// Reset restores the initial pan, zoom, rotation and mode.
func (s *Session) Reset() {
	s.pan = Point{}
	s.zoom = MinZoom
	s.rotation = 0
	s.mode = walkcrop.Fill
	s.update()
}

func (s *Session) Pan() Point { return s.pan }
func (s *Session) Zoom() float64 { return s.zoom }
func (s *Session) Rotation() float64 { return s.rotation }
func (s *Session) Mode() walkcrop.Mode { return s.mode }
func (s *Session) Container() Size { return s.container }
func (s *Session) NaturalSize() image.Point { return s.natural }

// Aspect is the width to height ratio of the crop box.
func (s *Session) Aspect() float64 {
	if s.mode == walkcrop.Fill {
		return float64(walkcrop.TargetWidth) / float64(walkcrop.TargetHeight)
	}
	return FitAspect
}

// MediaSize is the size of the unrotated photo as displayed: scaled to fit
// the container, before zoom.
func (s *Session) MediaSize() Size {
	if !s.ready() {
		return Size{}
	}
	w, h := float64(s.natural.X), float64(s.natural.Y)
	if w/h > s.container.W/s.container.H {
		return Size{s.container.W, s.container.W * h / w}
	}
	return Size{s.container.H * w / h, s.container.H}
}

// CropSize is the size of the crop box in container pixels.
func (s *Session) CropSize() Size {
	if !s.ready() {
		return Size{}
	}
	ms := s.MediaSize()
	return cropSize(ms, s.container, s.Aspect(), s.rotation)
}

// Area returns the selected region in natural photo pixels. ok is false
// until both the photo and the container size are known.
func (s *Session) Area() (area image.Rectangle, ok bool) {
	return s.area, s.hasArea
}

// Request finalises the dialog.
func (s *Session) Request() (walkcrop.Request, error) {
	if !s.hasArea {
		return walkcrop.Request{}, fmt.Errorf("%w: no crop area selected", walkcrop.ErrInvalidCrop)
	}
	req := walkcrop.Request{Region: s.area, Rotation: s.rotation, Mode: s.mode}
	return req, req.Validate()
}

func (s *Session) ready() bool {
	return s.natural.X > 0 && s.natural.Y > 0 && s.container.W > 0 && s.container.H > 0
}

func (s *Session) update() {
	if !s.ready() {
		return
	}
	ms := s.MediaSize()
	cs := cropSize(ms, s.container, s.Aspect(), s.rotation)
	bbox := rotateSize(ms, s.rotation)
	s.pan = Point{
		X: restrict(s.pan.X, bbox.W, cs.W, s.zoom),
		Y: restrict(s.pan.Y, bbox.H, cs.H, s.zoom),
	}
	natural := Size{float64(s.natural.X), float64(s.natural.Y)}
	s.area = croppedArea(s.pan, bbox, rotateSize(natural, s.rotation), cs, s.Aspect(), s.zoom)
	s.hasArea = true
}

// rotateSize is the bounding box of a w x h rectangle rotated by deg.
func rotateSize(sz Size, deg float64) Size {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	return Size{
		W: cos*sz.W + sin*sz.H,
		H: sin*sz.W + cos*sz.H,
	}
}

// cropSize is the largest box of the given aspect that fits both the rotated
// media and the container.
func cropSize(media, container Size, aspect, rotation float64) Size {
	bbox := rotateSize(media, rotation)
	w := math.Min(bbox.W, container.W)
	h := math.Min(bbox.H, container.H)
	if w > h*aspect {
		return Size{h * aspect, h}
	}
	return Size{w, w / aspect}
}

// restrict limits a pan offset so the zoomed media still covers the crop
// box along one axis.
func restrict(pos, media, crop, zoom float64) float64 {
	limit := media*zoom/2 - crop/2
	return math.Min(limit, math.Max(-limit, pos))
}

func croppedArea(pan Point, bbox, naturalBBox, crop Size, aspect, zoom float64) image.Rectangle {
	// Percentages of the rotated media bounding box.
	px := clamp(100, ((bbox.W-crop.W/zoom)/2-pan.X/zoom)/bbox.W*100)
	py := clamp(100, ((bbox.H-crop.H/zoom)/2-pan.Y/zoom)/bbox.H*100)
	pw := clamp(100, crop.W/bbox.W*100/zoom)
	ph := clamp(100, crop.H/bbox.H*100/zoom)

	w := round(clamp(naturalBBox.W, pw*naturalBBox.W/100))
	h := round(clamp(naturalBBox.H, ph*naturalBBox.H/100))
	if naturalBBox.W >= naturalBBox.H*aspect {
		w = round(float64(h) * aspect)
	} else {
		h = round(float64(w) / aspect)
	}
	x := round(clamp(naturalBBox.W-float64(w), px*naturalBBox.W/100))
	y := round(clamp(naturalBBox.H-float64(h), py*naturalBBox.H/100))
	return image.Rect(x, y, x+w, y+h)
}

func clamp(hi, v float64) float64 {
	return math.Min(hi, math.Max(0, v))
}

// round rounds half up, also for negative values.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
