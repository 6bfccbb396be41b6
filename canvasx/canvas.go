// Package canvasx is a small raster drawing surface with the semantics of a
// browser 2D canvas context: a current affine transform, source-over image
// drawing, and raw pixel read-back and write-back that bypass the transform.
//
// The surface is always an *image.RGBA with its origin at (0, 0).
package canvasx

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Surface limits. Browsers refuse to create a 2D context past roughly these
// sizes; keeping the same bounds keeps memory use predictable.
const (
	MaxSide = 32767
	MaxArea = 268435456
)

// ErrUnavailable is returned when a surface of the requested size cannot be
// allocated.
var ErrUnavailable = errors.New("canvas: rendering context unavailable")

var identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Canvas is a drawing surface. It is not safe for concurrent use.
type Canvas struct {
	img *image.RGBA
	m   f64.Aff3
}

// New allocates a transparent width x height canvas.
func New(width, height int) (*Canvas, error) {
	img, err := alloc(width, height)
	if err != nil {
		return nil, err
	}
	return &Canvas{img: img, m: identity}, nil
}

func alloc(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 ||
		width > MaxSide || height > MaxSide ||
		int64(width)*int64(height) > MaxArea {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnavailable, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// SetSize reallocates the surface. Like assigning canvas.width, it discards
// the content and resets the transform. Rasters previously returned by Image
// are left untouched.
func (c *Canvas) SetSize(width, height int) error {
	img, err := alloc(width, height)
	if err != nil {
		return err
	}
	c.img = img
	c.m = identity
	return nil
}

func (c *Canvas) Width() int  { return c.img.Rect.Dx() }
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Image returns the backing raster.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Transform returns the current user-to-device transform.
func (c *Canvas) Transform() f64.Aff3 { return c.m }

func (c *Canvas) ResetTransform() { c.m = identity }

func (c *Canvas) Translate(x, y float64) {
	c.m = mul(c.m, f64.Aff3{1, 0, x, 0, 1, y})
}

func (c *Canvas) Scale(sx, sy float64) {
	c.m = mul(c.m, f64.Aff3{sx, 0, 0, 0, sy, 0})
}

// Rotate rotates the user space clockwise (y axis pointing down) by rad
// radians.
func (c *Canvas) Rotate(rad float64) {
	sin, cos := math.Sincos(rad)
	sin, cos = snap(sin), snap(cos)
	c.m = mul(c.m, f64.Aff3{cos, -sin, 0, sin, cos, 0})
}

// snap keeps right-angle rotations on the pixel grid.
func snap(v float64) float64 {
	switch {
	case math.Abs(v) < 1e-12:
		return 0
	case math.Abs(v-1) < 1e-12:
		return 1
	case math.Abs(v+1) < 1e-12:
		return -1
	}
	return v
}

// DrawImage draws src with its top-left corner at (dx, dy) in user space.
func (c *Canvas) DrawImage(src image.Image, dx, dy float64) {
	sr := src.Bounds()
	s2d := mul(c.m, f64.Aff3{1, 0, dx - float64(sr.Min.X), 0, 1, dy - float64(sr.Min.Y)})
	draw.BiLinear.Transform(c.img, s2d, src, sr, draw.Over, nil)
}

// DrawImageScaled draws src stretched over the user-space rectangle
// (dx, dy, dw, dh). Nothing is drawn for an empty source or destination.
func (c *Canvas) DrawImageScaled(src image.Image, dx, dy, dw, dh float64) {
	sr := src.Bounds()
	if sr.Empty() || dw <= 0 || dh <= 0 {
		return
	}
	sx := dw / float64(sr.Dx())
	sy := dh / float64(sr.Dy())
	s2d := mul(c.m, f64.Aff3{
		sx, 0, dx - sx*float64(sr.Min.X),
		0, sy, dy - sy*float64(sr.Min.Y),
	})
	draw.CatmullRom.Transform(c.img, s2d, src, sr, draw.Over, nil)
}

// Fill paints the whole surface with col, source-over, regardless of the
// transform.
func (c *Canvas) Fill(col color.Color) {
	draw.Draw(c.img, c.img.Rect, image.NewUniform(col), image.Point{}, draw.Over)
}

// FillRect paints a user-space rectangle with col. Edges are rounded to
// whole source pixels before the transform is applied.
func (c *Canvas) FillRect(x, y, w, h float64, col color.Color) {
	sr := image.Rect(0, 0, int(math.Round(w)), int(math.Round(h)))
	if sr.Empty() {
		return
	}
	s2d := mul(c.m, f64.Aff3{1, 0, x, 0, 1, y})
	draw.NearestNeighbor.Transform(c.img, s2d, image.NewUniform(col), sr, draw.Over, nil)
}

// GetImageData copies the device-space region r. Pixels outside the surface
// are transparent.
func (c *Canvas) GetImageData(r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Rect, c.img, r.Min, draw.Src)
	return out
}

// PutImageData writes data with its top-left corner at device offset
// (dx, dy), replacing pixels including alpha. The transform does not apply.
func (c *Canvas) PutImageData(data *image.RGBA, dx, dy int) {
	dr := data.Rect.Sub(data.Rect.Min).Add(image.Pt(dx, dy))
	draw.Draw(c.img, dr, data, data.Rect.Min, draw.Src)
}

// mul returns p∘q: the transform that applies q first, then p.
func mul(p, q f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		p[0]*q[0] + p[1]*q[3], p[0]*q[1] + p[1]*q[4], p[0]*q[2] + p[1]*q[5] + p[2],
		p[3]*q[0] + p[4]*q[3], p[3]*q[1] + p[4]*q[4], p[3]*q[2] + p[4]*q[5] + p[5],
	}
}
