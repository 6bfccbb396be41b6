// Package source accepts images picked by a user: uploads, data URLs, remote
// URLs and local files. Only images up to MaxBytes are let through.
package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sebnyberg/walkcrop"
)

// MaxBytes is the default upload limit.
const MaxBytes = 5 << 20

var (
	ErrNotImage       = errors.New("please select an image file")
	ErrTooLarge       = errors.New("image file is too large")
	ErrDataURL        = errors.New("malformed data URL")
	ErrPrivateAddress = errors.New("address is not publicly routable")
)

// MaxRedirects is the number of redirects PublicClient follows.
const MaxRedirects = 3

// PublicClient returns an HTTP client for fetching URLs supplied by users.
// It only connects to publicly routable addresses, checked on the resolved
// address of every connection including redirects. Proxy settings are
// ignored.
func PublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: dialPublic,
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			return nil
		},
	}
}

func dialPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !IsPublic(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// Shared address space used by carrier-grade NAT.
var sharedSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPublic reports whether ip is a globally routable unicast address.
func IsPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!sharedSpace.Contains(ip)
}

// Validate accepts any image/* media type of at most MaxBytes.
func Validate(contentType string, size int64) error {
	return validate(contentType, size, MaxBytes)
}

func validate(contentType string, size, limit int64) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return fmt.Errorf("%w: %q", ErrNotImage, contentType)
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, limit)
	}
	return nil
}

// ParseDataURL decodes an RFC 2397 data URL.
func ParseDataURL(s string) (data []byte, mediaType string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: scheme", ErrDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing comma", ErrDataURL)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
	} else {
		var raw string
		raw, err = url.PathUnescape(payload)
		data = []byte(raw)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDataURL, err)
	}
	return data, mediaType, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(data []byte, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Loader resolves image references. The zero value is ready to use.
type Loader struct {
	// Client fetches http(s) references. Defaults to http.DefaultClient.
	Client *http.Client
	// MaxBytes defaults to the package MaxBytes.
	MaxBytes int64
	// Decoder defaults to walkcrop.DefaultDecoder.
	Decoder walkcrop.Decoder
}

// Load fetches and decodes ref. See Fetch for the accepted references.
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	data, _, err := l.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return walkcrop.Decode(l.Decoder, bytes.NewReader(data))
}

// Fetch returns the raw bytes and media type of ref, which is a data URL, an
// http(s) URL or a local file path. The result has passed Validate.
func (l *Loader) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	limit := l.MaxBytes
	if limit <= 0 {
		limit = MaxBytes
	}
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, mediaType, err := ParseDataURL(ref)
		if err != nil {
			return nil, "", err
		}
		if err := validate(mediaType, int64(len(data)), limit); err != nil {
			return nil, "", err
		}
		return data, mediaType, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.get(ctx, ref, limit)
	}
	return readFile(ref, limit)
}

func (l *Loader) get(ctx context.Context, ref string, limit int64) ([]byte, string, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request err, %w", err)
	}
	req.Header.Set("Accept", "image/*")
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %q err, %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("get %q: %s", ref, resp.Status)
	}
	if resp.ContentLength > limit {
		return nil, "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, resp.ContentLength, limit)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %q err, %w", ref, err)
	}
	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	if err := validate(mediaType, int64(len(data)), limit); err != nil {
		return nil, "", err
	}
	return data, mediaType, nil
}

func readFile(path string, limit int64) ([]byte, string, error) {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat file %q err, %w", path, err)
	}
	if fi.Size() > limit {
		return nil, "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, fi.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file %q err, %w", path, err)
	}
	mediaType := Sniff(data, path)
	if err := validate(mediaType, int64(len(data)), limit); err != nil {
		return nil, "", err
	}
	return data, mediaType, nil
}

// Formats http.DetectContentType does not recognise.
var extTypes = map[string]string{
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
	".jxl":  "image/jxl",
}

// Sniff returns the media type of data, falling back to the extension of
// name when the content is not recognised.
func Sniff(data []byte, name string) string {
	if mt := http.DetectContentType(data); strings.HasPrefix(mt, "image/") {
		return mt
	}
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := extTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
