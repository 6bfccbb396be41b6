package walkcrop

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sebnyberg/walkcrop/bmpx"
	"github.com/sebnyberg/walkcrop/zstdx"
	"go.uber.org/multierr"
	"golang.org/x/image/bmp"
)

// CropFile crops the image at srcPath into a PNG at dstPath. The output file
// is only created once the crop has succeeded. For more info, see Crop().
func CropFile(srcPath, dstPath string, req Request) (err error) {
	srcPath = filepath.Clean(srcPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open file %q err, %w", srcPath, err)
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	var out bytes.Buffer
	if err := Crop(src, &out, req); err != nil {
		return err
	}

	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_TRUNC|os.O_CREATE, 0640)
	if err != nil {
		return fmt.Errorf("open file %q err, %w", dstPath, err)
	}
	defer func() { err = multierr.Append(err, dst.Close()) }()
	_, err = out.WriteTo(dst)
	return err
}

// Crop decodes the image in src, applies req and writes the PNG result to
// dst.
//
// The source may be zstd compressed. A Fill request at zero rotation on a
// BMP without alpha is served by copying rows, so very large scans never
// have to be decoded in full; when src is an io.Seeker (a file, or a seekable
// zstd archive) rows outside the region are skipped by seeking.
func Crop(src io.Reader, dst io.Writer, req Request) error {
	return crop(DefaultDecoder, src, dst, req)
}

// CropWith is Crop with a custom decoder. A nil dec means DefaultDecoder.
func CropWith(dec Decoder, src io.Reader, dst io.Writer, req Request) error {
	return crop(dec, src, dst, req)
}

func crop(dec Decoder, src io.Reader, dst io.Writer, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	rc, err := zstdx.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if _, ok := rc.(io.Seeker); !ok {
		r = bufio.NewReader(rc)
	}
	if done, err := streamBMP(r, dst, req); done || err != nil {
		return err
	}

	img, err := Decode(dec, r)
	if err != nil {
		return err
	}
	out, err := Transform(img, req)
	if err != nil {
		return err
	}
	return Encode(dst, out)
}

// streamBMP handles requests the BMP row copier can serve with the same
// pixels Transform would produce: Fill mode, no rotation, an even-sized
// image (so the source sits on whole pixels of the working canvas) and a
// region inside the image. done is false, and r left where it was, when the
// fast path does not apply.
func streamBMP(r io.Reader, dst io.Writer, req Request) (done bool, err error) {
	if req.Mode != Fill || req.Rotation != 0 {
		return false, nil
	}
	hdr, ok, err := peekBMPHeader(r)
	if err != nil || !ok {
		return false, err
	}
	bounds := image.Rect(0, 0, hdr.Width, hdr.Height)
	if hdr.Alpha || hdr.Width%2 != 0 || hdr.Height%2 != 0 || !req.Region.In(bounds) {
		return false, nil
	}

	var buf bytes.Buffer
	if err := bmpx.Crop(r, &buf, req.Region); err != nil {
		return true, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		return true, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return true, Encode(dst, img)
}

// peekBMPHeader reads a BMP header without consuming r. r must be an
// io.ReadSeeker or a *bufio.Reader.
func peekBMPHeader(r io.Reader) (hdr bmpx.Header, ok bool, err error) {
	switch r := r.(type) {
	case io.ReadSeeker:
		pos, serr := r.Seek(0, io.SeekCurrent)
		if serr != nil {
			return hdr, false, nil
		}
		hdr, err = bmpx.ReadHeader(r)
		ok = err == nil
		if _, serr := r.Seek(pos, io.SeekStart); serr != nil {
			return hdr, false, fmt.Errorf("%w: rewind source: %w", ErrDecode, serr)
		}
		return hdr, ok, nil
	case *bufio.Reader:
		b, _ := r.Peek(bmpx.MaxHeaderLen)
		hdr, err = bmpx.ReadHeader(bytes.NewReader(b))
		return hdr, err == nil, nil
	}
	return hdr, false, nil
}

// ImageCropper serves any number of crops of one source, e.g. every time a
// user confirms the crop dialog. The source is decoded on first use and the
// decoded pixels are shared read-only, so crops may run concurrently.
type ImageCropper struct {
	mtx sync.Mutex
	r   io.Reader
	dec Decoder
	img image.Image
	err error
}

// NewCropper returns a cropper for the encoded image in r. A nil dec means
// DefaultDecoder.
func NewCropper(r io.Reader, dec Decoder) *ImageCropper {
	return &ImageCropper{r: r, dec: dec}
}

// Source returns the decoded source image. Decoding happens once; a decode
// failure is returned on every later call.
func (c *ImageCropper) Source() (image.Image, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.img != nil || c.err != nil {
		return c.img, c.err
	}
	rc, err := zstdx.Open(c.r)
	if err != nil {
		c.err = fmt.Errorf("%w: %w", ErrDecode, err)
		return nil, c.err
	}
	defer rc.Close()
	c.img, c.err = Decode(c.dec, rc)
	return c.img, c.err
}

func (c *ImageCropper) Crop(req Request, to io.Writer) error {
	if err := req.Validate(); err != nil {
		return err
	}
	src, err := c.Source()
	if err != nil {
		return err
	}
	out, err := Transform(src, req)
	if err != nil {
		return err
	}
	return Encode(to, out)
}
