package walkcrop_test

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/vipsx"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), uint8(x ^ y), 0xff})
		}
	}
	return img
}

func BenchmarkTransform(b *testing.B) {
	src := gradient(2000, 1500)
	for _, mode := range []walkcrop.Mode{walkcrop.Fill, walkcrop.Fit} {
		for _, rot := range []float64{0, 90, 33} {
			req := walkcrop.Request{
				Region:   image.Rect(300, 200, 300+1100, 200+560),
				Rotation: rot,
				Mode:     mode,
			}
			b.Run(fmt.Sprintf("%v-%v", mode, rot), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					_, err := walkcrop.Transform(src, req)
					require.NoError(b, err)
				}
			})
		}
	}
}

func BenchmarkCrop(b *testing.B) {
	src := gradient(2000, 1500)
	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(b, png.Encode(&pngBuf, src))
	require.NoError(b, bmp.Encode(&bmpBuf, src))
	req := walkcrop.Request{Region: image.Rect(300, 200, 300+550, 200+280)}

	for _, format := range []struct {
		name string
		data []byte
	}{
		{"png", pngBuf.Bytes()},
		{"bmp", bmpBuf.Bytes()},
	} {
		b.Run(format.name+"-go", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				err := walkcrop.Crop(bytes.NewReader(format.data), io.Discard, req)
				require.NoError(b, err)
			}
		})
		b.Run(format.name+"-vips", func(b *testing.B) {
			vipsx.Start()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				c := walkcrop.NewCropper(bytes.NewReader(format.data), vipsx.Decoder{})
				require.NoError(b, c.Crop(req, io.Discard))
			}
		})
	}
}
