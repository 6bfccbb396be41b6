// Package preview draws the crop dialog as the user sees it: the photo
// panned, zoomed and rotated inside the container, with everything outside
// the crop box shaded.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/canvasx"
	"github.com/sebnyberg/walkcrop/internal/session"
)

var ErrNotReady = errors.New("preview: media or container size unknown")

// Style of the dialog.
var (
	Backdrop = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	Shade    = color.RGBA{0, 0, 0, 0x80}
	Outline  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	Grid     = color.RGBA{0xff, 0xff, 0xff, 0x66}
)

// Render draws src as shown by s. The result has the container size.
func Render(src image.Image, s *session.Session) (image.Image, error) {
	dc, err := render(src, s)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Write renders the preview as PNG.
func Write(w io.Writer, src image.Image, s *session.Session) error {
	dc, err := render(src, s)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

func render(src image.Image, s *session.Session) (*gg.Context, error) {
	cont := s.Container()
	media := s.MediaSize()
	if media.W <= 0 || media.H <= 0 {
		return nil, ErrNotReady
	}
	if !(cont.W >= 1 && cont.H >= 1 && cont.W <= canvasx.MaxSide && cont.H <= canvasx.MaxSide &&
		cont.W*cont.H <= canvasx.MaxArea) {
		return nil, fmt.Errorf("%w: container %vx%v", walkcrop.ErrRenderContext, cont.W, cont.H)
	}
	width, height := int(math.Round(cont.W)), int(math.Round(cont.H))
	dc := gg.NewContext(width, height)
	dc.SetColor(Backdrop)
	dc.Clear()

	// The photo is shown at display size times zoom, so a thumbnail is
	// enough.
	zoom := s.Zoom()
	tw := max(1, int(math.Round(media.W*zoom)))
	th := max(1, int(math.Round(media.H*zoom)))
	thumb := resize.Resize(uint(tw), uint(th), src, resize.Lanczos3)

	cx, cy := cont.W/2, cont.H/2
	pan := s.Pan()
	dc.Push()
	dc.RotateAbout(gg.Radians(s.Rotation()), cx+pan.X, cy+pan.Y)
	dc.DrawImageAnchored(thumb, int(math.Round(cx+pan.X)), int(math.Round(cy+pan.Y)), 0.5, 0.5)
	dc.Pop()

	crop := s.CropSize()
	x0, y0 := cx-crop.W/2, cy-crop.H/2

	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.DrawRectangle(0, 0, cont.W, cont.H)
	dc.DrawRectangle(x0, y0, crop.W, crop.H)
	dc.SetColor(Shade)
	dc.Fill()

	// Rule of thirds.
	dc.SetColor(Grid)
	dc.SetLineWidth(1)
	dc.SetDash(4, 4)
	for i := 1; i < 3; i++ {
		fx := x0 + crop.W*float64(i)/3
		fy := y0 + crop.H*float64(i)/3
		dc.DrawLine(fx, y0, fx, y0+crop.H)
		dc.DrawLine(x0, fy, x0+crop.W, fy)
	}
	dc.Stroke()
	dc.SetDash()

	dc.SetColor(Outline)
	dc.SetLineWidth(2)
	dc.DrawRectangle(x0, y0, crop.W, crop.H)
	dc.Stroke()
	return dc, nil
}
