package walkcrop

import "errors"

var (
	// ErrDecode is returned when the source cannot be decoded.
	ErrDecode = errors.New("decode source image")
	// ErrRenderContext is returned when a working canvas cannot be allocated.
	ErrRenderContext = errors.New("rendering context unavailable")
	// ErrEncode is returned when the output cannot be encoded.
	ErrEncode = errors.New("encode output image")
	// ErrInvalidCrop is returned for a request that has no usable crop
	// region, such as finalizing before any region was selected.
	ErrInvalidCrop = errors.New("invalid crop state")
)
