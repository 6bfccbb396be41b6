// Package server exposes cropping and previews over HTTP.
//
//	POST /v1/crop     crop an uploaded image, responds image/png
//	POST /v1/preview  render the crop dialog for an uploaded image
//	GET  /healthz
//
// The image is sent as a multipart "image" file or as a "source" data URL,
// or an http(s) URL when the server allows them. The crop is either given explicitly with x, y, width and
// height, or derived from the dialog state with zoom, pan_x, pan_y,
// container_width and container_height. rotation and mode apply to both.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/internal/preview"
	"github.com/sebnyberg/walkcrop/source"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

const fetchTimeout = 10 * time.Second

type Config struct {
	// Concurrency bounds the number of images processed at once. Defaults
	// to runtime.NumCPU().
	Concurrency int
	// Decoder defaults to walkcrop.DefaultDecoder.
	Decoder walkcrop.Decoder
	// AllowURLSources lets clients send an http(s) "source" for the server
	// to fetch. Data URLs are always accepted.
	AllowURLSources bool
	// Loader fetches "source" URLs. Defaults to a loader on
	// source.PublicClient.
	Loader *source.Loader
}

type Server struct {
	log    *zap.Logger
	pool   pond.ResultPool[[]byte]
	dec    walkcrop.Decoder
	loader *source.Loader
	urls   bool
	mux    *http.ServeMux
}

func New(cfg Config, log *zap.Logger) *Server {
	n := cfg.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}
	loader := cfg.Loader
	if loader == nil {
		loader = &source.Loader{Client: source.PublicClient(fetchTimeout)}
	}
	s := &Server{
		log:    log,
		pool:   pond.NewResultPool[[]byte](n),
		dec:    cfg.Decoder,
		loader: loader,
		urls:   cfg.AllowURLSources,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /v1/crop", s.handleCrop)
	s.mux.HandleFunc("POST /v1/preview", s.handlePreview)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	return s
}

// Close waits for running work to finish and stops the worker pool.
func (s *Server) Close() error {
	s.pool.StopAndWait()
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", id)
	rec := &recorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	fields := []zap.Field{
		zap.String("id", id),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Int("bytes", rec.n),
		zap.Duration("duration", time.Since(start)),
	}
	if rec.err != nil {
		fields = append(fields, zap.Error(rec.err))
	}
	if rec.status >= http.StatusInternalServerError {
		s.log.Error("request", fields...)
		return
	}
	s.log.Info("request", fields...)
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request) {
	in, err := s.parse(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	task := s.pool.SubmitErr(func() ([]byte, error) {
		c := walkcrop.NewCropper(bytes.NewReader(in.data), s.dec)
		src, err := c.Source()
		if err != nil {
			return nil, err
		}
		req, err := in.request(src.Bounds().Size())
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := c.Crop(req, &out); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
	out, err := task.Wait()
	if err != nil {
		s.fail(w, err)
		return
	}
	writePNG(w, r, out)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	in, err := s.parse(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	task := s.pool.SubmitErr(func() ([]byte, error) {
		src, err := walkcrop.Decode(s.dec, bytes.NewReader(in.data))
		if err != nil {
			return nil, err
		}
		sess, err := in.session(src.Bounds().Size())
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := preview.Write(&out, src, sess); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
	out, err := task.Wait()
	if err != nil {
		s.fail(w, err)
		return
	}
	writePNG(w, r, out)
}

func writePNG(w http.ResponseWriter, r *http.Request, data []byte) {
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(data))
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatch(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func etagMatch(header, etag string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == etag {
			return true
		}
	}
	return false
}

// Status returns the HTTP status for err.
func Status(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, source.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, source.ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, walkcrop.ErrInvalidCrop),
		errors.Is(err, errBadRequest),
		errors.Is(err, source.ErrPrivateAddress),
		errors.Is(err, source.ErrDataURL),
		errors.Is(err, preview.ErrNotReady):
		return http.StatusBadRequest
	case errors.Is(err, walkcrop.ErrDecode):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if rec, ok := w.(*recorder); ok {
		rec.err = err
	}
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	http.Error(w, msg, status)
}

type recorder struct {
	http.ResponseWriter
	status int
	n      int
	err    error
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.n += n
	return n, err
}
