package canvasx

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f64"
)

var red = color.RGBA{255, 0, 0, 255}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name string
		w, h int
		ok   bool
	}{
		{"small", 10, 20, true},
		{"max side", MaxSide, 1, true},
		{"zero width", 0, 10, false},
		{"negative height", 10, -1, false},
		{"side too large", MaxSide + 1, 1, false},
		{"area too large", 20000, 20000, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.w, tc.h)
			if !tc.ok {
				require.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.w, c.Width())
			require.Equal(t, tc.h, c.Height())
		})
	}
}

func TestSetSizeResets(t *testing.T) {
	c, err := New(4, 4)
	require.NoError(t, err)
	c.Translate(2, 2)
	c.DrawImage(solid(2, 2, red), 0, 0)
	before := c.Image()

	require.NoError(t, c.SetSize(3, 5))
	require.Equal(t, f64.Aff3{1, 0, 0, 0, 1, 0}, c.Transform())
	require.Equal(t, image.Rect(0, 0, 3, 5), c.Image().Rect)
	require.Equal(t, color.RGBA{}, c.Image().RGBAAt(0, 0))
	require.Equal(t, red, before.RGBAAt(3, 3), "old raster must survive a resize")

	require.ErrorIs(t, c.SetSize(0, 1), ErrUnavailable)
}

func TestRotateSnapsRightAngles(t *testing.T) {
	for _, deg := range []float64{90, 180, 270, 360, -90, 720} {
		c, err := New(1, 1)
		require.NoError(t, err)
		c.Rotate(deg * math.Pi / 180)
		for _, v := range c.Transform() {
			require.Contains(t, []float64{-1, 0, 1}, v, "deg=%v", deg)
		}
	}
}

func TestDrawImageIntegerOffsetIsExact(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 9)
	}
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	c, err := New(6, 6)
	require.NoError(t, err)
	c.DrawImage(src, 2, 1)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			require.Equal(t, src.RGBAAt(x, y), c.Image().RGBAAt(x+2, y+1))
		}
	}
	require.Equal(t, color.RGBA{}, c.Image().RGBAAt(0, 0))
}

func TestDrawImageRotatedAboutCenter(t *testing.T) {
	// A 4x2 bar rotated 90 degrees about the centre of an 8x8 canvas becomes
	// a 2x4 bar.
	c, err := New(8, 8)
	require.NoError(t, err)
	c.Translate(4, 4)
	c.Rotate(math.Pi / 2)
	c.Translate(-4, -4)
	c.DrawImage(solid(4, 2, red), 2, 3)

	img := c.Image()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			inside := x >= 3 && x < 5 && y >= 2 && y < 6
			if inside {
				require.Equal(t, red, img.RGBAAt(x, y), "(%d,%d)", x, y)
			} else {
				require.Equal(t, uint8(0), img.RGBAAt(x, y).A, "(%d,%d)", x, y)
			}
		}
	}
}

func TestDrawImageScaled(t *testing.T) {
	c, err := New(10, 10)
	require.NoError(t, err)
	c.DrawImageScaled(solid(4, 4, red), 1, 2, 8, 6)
	img := c.Image()
	require.Equal(t, red, img.RGBAAt(4, 4))
	require.Equal(t, uint8(0), img.RGBAAt(0, 0).A)
	require.Equal(t, uint8(0), img.RGBAAt(9, 9).A)

	// Degenerate destinations draw nothing.
	c.DrawImageScaled(solid(4, 4, red), 0, 0, 0, 5)
	require.Equal(t, uint8(0), img.RGBAAt(0, 0).A)
}

func TestScaleComposes(t *testing.T) {
	c, err := New(10, 10)
	require.NoError(t, err)
	c.Translate(1, 1)
	c.Scale(2, 3)
	require.Equal(t, f64.Aff3{2, 0, 1, 0, 3, 1}, c.Transform())
	c.ResetTransform()
	require.Equal(t, f64.Aff3{1, 0, 0, 0, 1, 0}, c.Transform())
}

func TestFillRect(t *testing.T) {
	c, err := New(5, 5)
	require.NoError(t, err)
	c.FillRect(1, 1, 3, 2, color.White)
	img := c.Image()
	require.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(1, 1))
	require.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(3, 2))
	require.Equal(t, color.RGBA{}, img.RGBAAt(4, 3))
	require.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
}

func TestFill(t *testing.T) {
	c, err := New(3, 2)
	require.NoError(t, err)
	c.Translate(10, 10)
	c.Fill(color.RGBA{0, 0, 0xff, 0xff})
	img := c.Image()
	require.Equal(t, color.RGBA{0, 0, 0xff, 0xff}, img.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{0, 0, 0xff, 0xff}, img.RGBAAt(2, 1))
}

func TestImageDataRoundTrip(t *testing.T) {
	c, err := New(4, 4)
	require.NoError(t, err)
	c.DrawImage(solid(4, 4, red), 0, 0)

	// Reading past the edges yields transparent pixels.
	data := c.GetImageData(image.Rect(-2, -2, 2, 2))
	require.Equal(t, image.Rect(0, 0, 4, 4), data.Rect)
	require.Equal(t, color.RGBA{}, data.RGBAAt(0, 0))
	require.Equal(t, red, data.RGBAAt(3, 3))

	// putImageData replaces pixels, alpha included, and ignores the transform.
	require.NoError(t, c.SetSize(4, 4))
	c.Translate(100, 100)
	c.PutImageData(data, 1, 1)
	img := c.Image()
	require.Equal(t, color.RGBA{}, img.RGBAAt(1, 1))
	require.Equal(t, red, img.RGBAAt(3, 3))
}
