// Package job reads crop jobs from YAML files.
//
// A file holds either one job:
//
//	source: hotel.jpg
//	output: hero.png
//	crop: {x: 100, y: 50, width: 550, height: 280}
//	rotation: 90
//	mode: fit
//
// or a list of them under "jobs". Relative paths resolve against the
// directory of the file.
package job

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sebnyberg/walkcrop"
	"gopkg.in/yaml.v3"
)

var ErrNoJobs = errors.New("job file has no jobs")

type Crop struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (c Crop) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

type Job struct {
	Name     string        `yaml:"name,omitempty"`
	Source   string        `yaml:"source"`
	Output   string        `yaml:"output"`
	Crop     Crop          `yaml:"crop"`
	Rotation float64       `yaml:"rotation,omitempty"`
	Mode     walkcrop.Mode `yaml:"mode"`
}

// Request returns the crop the job asks for.
func (j Job) Request() walkcrop.Request {
	return walkcrop.Request{Region: j.Crop.Rect(), Rotation: j.Rotation, Mode: j.Mode}
}

// Validate checks that the job names its files and a crop with positive
// width and height.
func (j Job) Validate() error {
	if j.Source == "" {
		return errors.New("missing source")
	}
	if j.Output == "" {
		return errors.New("missing output")
	}
	if j.Crop.Width <= 0 || j.Crop.Height <= 0 {
		return fmt.Errorf("%w: crop %dx%d", walkcrop.ErrInvalidCrop, j.Crop.Width, j.Crop.Height)
	}
	return j.Request().Validate()
}

// String names the job in logs.
func (j Job) String() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Source
}

// Load reads the jobs in the file at path.
func Load(path string) ([]Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %q err, %w", path, err)
	}
	defer f.Close()
	jobs, err := Parse(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

// Parse reads jobs from r, resolving relative paths against dir.
func Parse(r io.Reader, dir string) ([]Job, error) {
	var doc struct {
		Job  `yaml:",inline"`
		Jobs []Job `yaml:"jobs"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoJobs
		}
		return nil, fmt.Errorf("decode jobs err, %w", err)
	}

	jobs := doc.Jobs
	if doc.Job != (Job{}) {
		if len(jobs) > 0 {
			return nil, errors.New("use either a single job or a jobs list, not both")
		}
		jobs = []Job{doc.Job}
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i, jobs[i], err)
		}
		jobs[i].Source = resolve(dir, jobs[i].Source)
		jobs[i].Output = resolve(dir, jobs[i].Output)
	}
	return jobs, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) || strings.Contains(p, "://") || strings.HasPrefix(p, "data:") {
		return p
	}
	return filepath.Join(dir, p)
}
