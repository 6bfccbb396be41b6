package main

import (
	"time"

	"github.com/sebnyberg/walkcrop/internal/batch"
	"github.com/sebnyberg/walkcrop/internal/job"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchCmd = &cobra.Command{
	Use:   "batch JOBFILE",
	Short: "Run the crop jobs listed in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().IntP("concurrency", "c", 0, "Jobs run at once (default number of CPUs)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	log, dec, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	jobs, err := job.Load(args[0])
	if err != nil {
		return err
	}

	start := time.Now()
	r := batch.Runner{Concurrency: concurrency, Logger: log, Decoder: dec}
	results, err := r.Run(cmd.Context(), jobs)
	var failed, written int
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		written += res.Bytes
	}
	log.Info("batch done",
		zap.String("file", args[0]),
		zap.Int("jobs", len(jobs)),
		zap.Int("failed", failed),
		zap.Int("bytes", written),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}
