package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/canvasx"
	"github.com/sebnyberg/walkcrop/internal/session"
	"github.com/sebnyberg/walkcrop/source"
	"github.com/sebnyberg/walkcrop/zstdx"
)

// Room for a base64 data URL of the largest accepted image plus fields.
const bodyLimit = 2*source.MaxBytes + 1<<20

type input struct {
	data []byte
	form url.Values
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) (*input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, formError(err)
		}
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
	}

	in := &input{form: r.Form}
	file, hdr, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, source.MaxBytes+1))
		if err != nil {
			return nil, formError(err)
		}
		ct := hdr.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = source.Sniff(data, hdr.Filename)
		}
		if err := source.Validate(ct, max(hdr.Size, int64(len(data)))); err != nil {
			return nil, err
		}
		in.data = data
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		ref := r.FormValue("source")
		if ref == "" {
			return nil, fmt.Errorf("%w: send an image file or a source URL", errBadRequest)
		}
		isURL := strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
		switch {
		case isURL && !s.urls:
			return nil, fmt.Errorf("%w: URL sources are disabled, send a data URL", errBadRequest)
		case !isURL && !strings.HasPrefix(ref, "data:"):
			return nil, fmt.Errorf("%w: source must be a data or http(s) URL", errBadRequest)
		}
		in.data, _, err = s.loader.Fetch(r.Context(), ref)
		if err != nil {
			return nil, err
		}
	default:
		return nil, formError(err)
	}
	if err := checkPixels(in.data); err != nil {
		return nil, err
	}
	return in, nil
}

// checkPixels reads the image header and rejects sources whose working
// canvas would pass the canvas limits, before any pixels are decoded.
// Formats only the configured decoder understands are left to it.
func checkPixels(data []byte) error {
	rc, err := zstdx.Open(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", walkcrop.ErrDecode, err)
	}
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	if errors.Is(err, image.ErrFormat) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", walkcrop.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: image is %dx%d", walkcrop.ErrDecode, cfg.Width, cfg.Height)
	}
	side := int64(walkcrop.SafeSide(cfg.Width, cfg.Height))
	if side > canvasx.MaxSide || side*side > canvasx.MaxArea {
		return fmt.Errorf("%w: %dx%d pixels", source.ErrTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: %w", source.ErrTooLarge, err)
	}
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// request returns the crop asked for on an image of the given size.
func (in *input) request(size image.Point) (walkcrop.Request, error) {
	if in.form.Get("width") == "" {
		sess, err := in.session(size)
		if err != nil {
			return walkcrop.Request{}, err
		}
		return sess.Request()
	}

	mode, rotation, err := in.common()
	if err != nil {
		return walkcrop.Request{}, err
	}
	var v [4]int
	for i, key := range []string{"x", "y", "width", "height"} {
		if v[i], err = in.intField(key); err != nil {
			return walkcrop.Request{}, err
		}
	}
	req := walkcrop.Request{
		Region:   image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]),
		Rotation: rotation,
		Mode:     mode,
	}
	if v[2] <= 0 || v[3] <= 0 {
		return walkcrop.Request{}, fmt.Errorf("%w: crop %dx%d", walkcrop.ErrInvalidCrop, v[2], v[3])
	}
	return req, req.Validate()
}

// session rebuilds the crop dialog for an image of the given size.
func (in *input) session(size image.Point) (*session.Session, error) {
	if in.form.Get("container_width") == "" || in.form.Get("container_height") == "" {
		return nil, fmt.Errorf("%w: send x, y, width and height or the dialog state", errBadRequest)
	}
	mode, rotation, err := in.common()
	if err != nil {
		return nil, err
	}
	var v [5]float64
	for i, key := range []string{"container_width", "container_height", "zoom", "pan_x", "pan_y"} {
		if v[i], err = in.floatField(key); err != nil {
			return nil, err
		}
	}

	sess := session.New()
	if err := sess.SetMedia(size.X, size.Y); err != nil {
		return nil, err
	}
	if err := sess.SetContainer(v[0], v[1]); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	sess.SetMode(mode)
	if in.form.Get("zoom") != "" {
		sess.SetZoom(v[2])
	}
	sess.SetAngle(rotation)
	sess.SetPan(v[3], v[4])
	return sess, nil
}

func (in *input) common() (walkcrop.Mode, float64, error) {
	mode := walkcrop.Fill
	if m := in.form.Get("mode"); m != "" {
		var err error
		if mode, err = walkcrop.ParseMode(m); err != nil {
			return 0, 0, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}
	rotation, err := in.floatField("rotation")
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(rotation) || math.IsInf(rotation, 0) {
		return 0, 0, fmt.Errorf("%w: rotation %v", walkcrop.ErrInvalidCrop, rotation)
	}
	return mode, rotation, nil
}

// intField parses an optional integer field, 0 when absent.
func (in *input) intField(key string) (int, error) {
	s := in.form.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", errBadRequest, key, s)
	}
	return v, nil
}

func (in *input) floatField(key string) (float64, error) {
	s := in.form.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", errBadRequest, key, s)
	}
	return v, nil
}
