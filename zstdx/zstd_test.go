package zstdx

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	// Repeat half of it so it compresses.
	copy(b[n/2:], b[:n/2])
	return b
}

func seekableArchive(t *testing.T, data []byte) []byte {
	t.Helper()
	old := FrameSize
	FrameSize = 1 << 10
	defer func() { FrameSize = old }()
	var buf bytes.Buffer
	require.NoError(t, WriteSeekable(&buf, bytes.NewReader(data), zstd.SpeedFastest))
	return buf.Bytes()
}

func plainArchive(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	data := payload(10_000)
	for _, tc := range []struct {
		name     string
		src      io.Reader
		seekable bool
	}{
		{"raw seeker", bytes.NewReader(data), true},
		{"raw stream", struct{ io.Reader }{bytes.NewReader(data)}, false},
		{"zstd seeker", bytes.NewReader(plainArchive(t, data)), false},
		{"zstd stream", struct{ io.Reader }{bytes.NewReader(plainArchive(t, data))}, false},
		{"seekable seeker", bytes.NewReader(seekableArchive(t, data)), true},
		{"seekable stream", struct{ io.Reader }{bytes.NewReader(seekableArchive(t, data))}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rc, err := Open(tc.src)
			require.NoError(t, err)
			defer rc.Close()
			_, ok := rc.(io.Seeker)
			require.Equal(t, tc.seekable, ok)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.Equal(t, data, got)
		})
	}
}

func TestOpenSeekable(t *testing.T) {
	data := payload(20_000)
	rc, err := Open(bytes.NewReader(seekableArchive(t, data)))
	require.NoError(t, err)
	defer rc.Close()
	rs := rc.(io.ReadSeeker)

	for _, off := range []int64{0, 5000, 1023, 1024, 19_999, 12_345} {
		_, err := rs.Seek(off, io.SeekStart)
		require.NoError(t, err)
		b := make([]byte, 1)
		_, err = io.ReadFull(rs, b)
		require.NoError(t, err)
		require.Equal(t, data[off], b[0], "offset %d", off)
	}

	_, err = rs.Seek(100, io.SeekStart)
	require.NoError(t, err)
	_, err = rs.Seek(400, io.SeekCurrent)
	require.NoError(t, err)
	b := make([]byte, 3000)
	_, err = io.ReadFull(rs, b)
	require.NoError(t, err)
	require.Equal(t, data[500:3500], b)
}

func TestOpenShortInput(t *testing.T) {
	for _, src := range []io.Reader{
		bytes.NewReader([]byte{0x28}),
		struct{ io.Reader }{bytes.NewReader(nil)},
	} {
		rc, err := Open(src)
		require.NoError(t, err)
		_, err = io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}
}

func TestOpenKeepsPosition(t *testing.T) {
	data := payload(100)
	r := bytes.NewReader(data)
	_, err := r.Seek(10, io.SeekStart)
	require.NoError(t, err)
	rc, err := Open(r)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data[10:], got)
}
