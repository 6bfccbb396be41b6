package job

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebnyberg/walkcrop"
	"github.com/stretchr/testify/require"
)

func TestParseSingle(t *testing.T) {
	jobs, err := Parse(strings.NewReader(`
source: hotel.jpg
output: out/hero.png
crop: {x: 100, y: 50, width: 550, height: 280}
rotation: 90
mode: Fit
`), "/data")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	j := jobs[0]
	require.Equal(t, filepath.Join("/data", "hotel.jpg"), j.Source)
	require.Equal(t, filepath.Join("/data", "out/hero.png"), j.Output)
	require.Equal(t, walkcrop.Request{
		Region:   image.Rect(100, 50, 650, 330),
		Rotation: 90,
		Mode:     walkcrop.Fit,
	}, j.Request())
	require.Equal(t, j.Source, j.String())
}

func TestParseList(t *testing.T) {
	jobs, err := Parse(strings.NewReader(`
jobs:
  - name: lobby
    source: /abs/lobby.png
    output: lobby.png
    crop: {x: 0, y: 0, width: 10, height: 10}
  - source: https://example.com/pool.jpg
    output: pool.png
    crop: {x: -5, y: 0, width: 20, height: 10}
    mode: fill
`), "rel")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "lobby", jobs[0].String())
	require.Equal(t, "/abs/lobby.png", jobs[0].Source)
	require.Equal(t, filepath.Join("rel", "lobby.png"), jobs[0].Output)
	require.Equal(t, walkcrop.Fill, jobs[0].Mode)
	require.Equal(t, "https://example.com/pool.jpg", jobs[1].Source)
	require.Equal(t, image.Rect(-5, 0, 15, 10), jobs[1].Request().Region)
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"no jobs", "jobs: []"},
		{"unknown field", "source: a.png\noutput: b.png\ncrop: {width: 1, height: 1}\nzoom: 2"},
		{"bad mode", "source: a.png\noutput: b.png\ncrop: {width: 1, height: 1}\nmode: stretch"},
		{"missing source", "output: b.png\ncrop: {width: 1, height: 1}"},
		{"missing output", "source: a.png\ncrop: {width: 1, height: 1}"},
		{"empty crop", "source: a.png\noutput: b.png\ncrop: {width: 0, height: 1}"},
		{"both", "source: a.png\noutput: b.png\ncrop: {width: 1, height: 1}\njobs:\n  - source: c.png\n    output: d.png\n    crop: {width: 1, height: 1}"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc), ".")
			require.Error(t, err)
		})
	}

	_, err := Parse(strings.NewReader(""), ".")
	require.ErrorIs(t, err, ErrNoJobs)
	_, err = Parse(strings.NewReader("source: a.png\noutput: b.png\ncrop: {width: -1, height: 1}"), ".")
	require.ErrorIs(t, err, walkcrop.ErrInvalidCrop)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: in.png
output: out.png
crop: {x: 1, y: 2, width: 3, height: 4}
`), 0600))

	jobs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, filepath.Join(dir, "in.png"), jobs[0].Source)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
