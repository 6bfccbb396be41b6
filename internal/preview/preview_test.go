package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/internal/session"
	"github.com/stretchr/testify/require"
)

func redImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 0xff, 0xff
	}
	return img
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New()
	require.NoError(t, s.SetMedia(1200, 800))
	require.NoError(t, s.SetContainer(600, 400))
	return s
}

func requireRGB(t *testing.T, img image.Image, x, y int, r, g, b, tol int) {
	t.Helper()
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	near := func(a uint8, want int) bool {
		d := int(a) - want
		return d >= -tol && d <= tol
	}
	require.True(t, near(c.R, r) && near(c.G, g) && near(c.B, b),
		"(%d,%d) = %v, want ~(%d,%d,%d)", x, y, c, r, g, b)
}

func TestRender(t *testing.T) {
	s := newSession(t)
	img, err := Render(redImage(1200, 800), s)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 600, 400), img.Bounds())

	// Inside the crop box the photo shows as is, outside it is shaded.
	requireRGB(t, img, 300, 200, 255, 0, 0, 8)
	requireRGB(t, img, 300, 10, 127, 0, 0, 10)
	requireRGB(t, img, 300, 390, 127, 0, 0, 10)
}

func TestRenderRotated(t *testing.T) {
	s := newSession(t)
	s.Rotate(90)
	img, err := Render(redImage(1200, 800), s)
	require.NoError(t, err)

	// Turned upright the photo is 400 wide, leaving the backdrop at the
	// sides.
	requireRGB(t, img, 300, 200, 255, 0, 0, 8)
	requireRGB(t, img, 20, 200, int(Backdrop.R)/2, int(Backdrop.G)/2, int(Backdrop.B)/2, 4)
	requireRGB(t, img, 580, 200, int(Backdrop.R)/2, int(Backdrop.G)/2, int(Backdrop.B)/2, 4)
}

func TestWrite(t *testing.T) {
	s := newSession(t)
	s.SetZoom(2)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, redImage(120, 80), s))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 600, 400), img.Bounds())
}

func TestNotReady(t *testing.T) {
	_, err := Render(redImage(10, 10), session.New())
	require.ErrorIs(t, err, ErrNotReady)
}

func TestRenderContainerBounds(t *testing.T) {
	for _, size := range [][2]float64{{0.5, 300}, {600, 0.4}} {
		s := session.New()
		require.NoError(t, s.SetMedia(120, 80))
		require.NoError(t, s.SetContainer(size[0], size[1]))
		_, err := Render(redImage(120, 80), s)
		require.ErrorIs(t, err, walkcrop.ErrRenderContext, "%v", size)
	}

	s := session.New()
	require.NoError(t, s.SetMedia(120, 80))
	require.NoError(t, s.SetContainer(session.MaxContainer, 1))
	img, err := Render(redImage(120, 80), s)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, int(session.MaxContainer), 1), img.Bounds())
}
