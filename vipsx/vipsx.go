// Package vipsx decodes images with libvips, covering formats the Go image
// packages cannot read such as HEIF, AVIF and JPEG XL.
package vipsx

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/sebnyberg/walkcrop"
)

var startup sync.Once

// Start initialises libvips. It is called by Decode and only needs to be
// called directly to pay the startup cost ahead of the first image.
func Start() {
	startup.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelCritical)
		vips.Startup(nil)
	})
}

var _ walkcrop.Decoder = Decoder{}

// Decoder implements walkcrop.Decoder on top of libvips. EXIF orientation is
// applied, so pixels come out the way a browser shows the file.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (image.Image, error) {
	Start()
	img, err := vips.NewImageFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("vips load err, %w", err)
	}
	defer img.Close()
	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips autorotate err, %w", err)
	}
	params := vips.NewPngExportParams()
	params.Compression = 0
	buf, _, err := img.ExportPng(params)
	if err != nil {
		return nil, fmt.Errorf("vips export err, %w", err)
	}
	return png.Decode(bytes.NewReader(buf))
}
