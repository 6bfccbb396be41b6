// Package zstdx opens zstd compressed sources, including seekable archives
// that support random access.
package zstdx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

var magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FrameSize is the amount of uncompressed data per frame written by
// WriteSeekable. Seeking decodes at most one frame worth of skipped bytes.
var FrameSize = 256 << 10

// Open returns a reader of the decompressed contents of r.
//
// Seekable archives are opened for random access and the result implements
// io.Seeker. Other zstd streams are decoded sequentially. Input that is not
// zstd is passed through as is, and keeps io.Seeker if r has it. Seekable
// archives are only detected when r is an io.ReadSeeker positioned at the
// start of the archive.
func Open(r io.Reader) (io.ReadCloser, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return openSeeker(rs)
	}
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(magic))
	if !bytes.Equal(head, magic) {
		return io.NopCloser(br), nil
	}
	return stream(br)
}

func openSeeker(rs io.ReadSeeker) (io.ReadCloser, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	head := make([]byte, len(magic))
	_, rerr := io.ReadFull(rs, head)
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	if rerr != nil || !bytes.Equal(head, magic) {
		return nopSeekCloser{rs}, nil
	}

	if pos == 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		sr, err := seekable.NewReader(rs, dec)
		if err == nil {
			return &seekReader{Reader: sr, dec: dec}, nil
		}
		dec.Close()
		// Not seekable, decode it as a plain stream.
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return stream(rs)
}

func stream(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("new zstd reader err, %w", err)
	}
	return dec.IOReadCloser(), nil
}

type seekReader struct {
	seekable.Reader
	dec *zstd.Decoder
}

func (r *seekReader) Close() error {
	err := r.Reader.Close()
	r.dec.Close()
	return err
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }

// WriteSeekable compresses src into dst as a seekable archive of FrameSize
// frames.
func WriteSeekable(dst io.Writer, src io.Reader, level zstd.EncoderLevel) (err error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("new zstd writer err, %w", err)
	}
	defer func() { err = multierr.Append(err, enc.Close()) }()
	w, err := seekable.NewWriter(dst, enc)
	if err != nil {
		return fmt.Errorf("new seekable writer err, %w", err)
	}

	buf := make([]byte, FrameSize)
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return multierr.Append(err, w.Close())
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return multierr.Append(rerr, w.Close())
		}
	}
	return w.Close()
}
