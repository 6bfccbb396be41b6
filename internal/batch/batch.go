// Package batch runs crop jobs in parallel.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/internal/job"
	"github.com/sebnyberg/walkcrop/source"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result describes one finished job.
type Result struct {
	Job      job.Job
	Bytes    int
	Checksum uint64
	Duration time.Duration
	Err      error
}

type Runner struct {
	// Concurrency defaults to runtime.NumCPU().
	Concurrency int
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// Decoder defaults to walkcrop.DefaultDecoder.
	Decoder walkcrop.Decoder
	// Loader fetches data: and http(s) sources. Local files are read
	// directly and are not subject to the upload limit.
	Loader *source.Loader
}

// Run executes jobs and returns their results in the same order. The error
// combines the failures of all jobs.
func (r *Runner) Run(ctx context.Context, jobs []job.Job) ([]Result, error) {
	n := r.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	pool := pond.NewResultPool[Result](n)
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, j := range jobs {
		group.Submit(func() Result {
			res := r.run(ctx, j)
			if res.Err != nil {
				log.Error("job failed",
					zap.String("job", j.String()),
					zap.String("source", j.Source),
					zap.Duration("duration", res.Duration),
					zap.Error(res.Err),
				)
				return res
			}
			log.Info("job done",
				zap.String("job", j.String()),
				zap.String("output", j.Output),
				zap.Int("bytes", res.Bytes),
				zap.String("checksum", fmt.Sprintf("%016x", res.Checksum)),
				zap.Duration("duration", res.Duration),
			)
			return res
		})
	}
	results, err := group.Wait()
	if err != nil {
		return results, err
	}

	for _, res := range results {
		if res.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", res.Job, res.Err))
		}
	}
	return results, err
}

func (r *Runner) run(ctx context.Context, j job.Job) Result {
	start := time.Now()
	res := Result{Job: j}
	out, err := r.crop(ctx, j)
	if err == nil {
		err = write(j.Output, out)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Bytes = len(out)
	res.Checksum = xxhash.Sum64(out)
	return res
}

func (r *Runner) crop(ctx context.Context, j job.Job) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if isRemote(j.Source) {
		loader := r.Loader
		if loader == nil {
			loader = &source.Loader{}
		}
		data, _, err := loader.Fetch(ctx, j.Source)
		if err != nil {
			return nil, err
		}
		if err := walkcrop.CropWith(r.Decoder, bytes.NewReader(data), &out, j.Request()); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}

	f, err := os.Open(filepath.Clean(j.Source))
	if err != nil {
		return nil, fmt.Errorf("open file %q err, %w", j.Source, err)
	}
	defer f.Close()
	if err := walkcrop.CropWith(r.Decoder, f, &out, j.Request()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create dir err, %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write file %q err, %w", path, err)
	}
	return nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://")
}
