package vipsx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sebnyberg/walkcrop"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 6), uint8(y * 12), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decoder{}.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), img.Bounds())
	for _, p := range []image.Point{{0, 0}, {39, 19}, {17, 4}} {
		require.Equal(t, src.At(p.X, p.Y), color.RGBAModel.Convert(img.At(p.X, p.Y)), "%v", p)
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := walkcrop.Decode(Decoder{}, bytes.NewReader([]byte("definitely not an image")))
	require.ErrorIs(t, err, walkcrop.ErrDecode)
}
