package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/sebnyberg/walkcrop/zstdx"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var packCmd = &cobra.Command{
	Use:   "pack INPUT OUTPUT",
	Short: "Compress an image into a seekable zstd archive",
	Long: `Compress an image into a seekable zstd archive.

crop reads archives directly. Uncompressed BMP scans stay cheap to crop
from an archive since rows outside the crop are skipped by seeking.`,
	Args: cobra.ExactArgs(2),
	RunE: runPack,
}

func init() {
	packCmd.Flags().String("level", "default", "Compression level (fastest, default, better-compression, best-compression)")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) (err error) {
	log, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	levelStr, _ := cmd.Flags().GetString("level")
	ok, level := zstd.EncoderLevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown compression level %q", levelStr)
	}

	srcPath, dstPath := filepath.Clean(args[0]), filepath.Clean(args[1])
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open file %q err, %w", srcPath, err)
	}
	defer func() { err = multierr.Append(err, src.Close()) }()
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create file %q err, %w", dstPath, err)
	}
	defer func() { err = multierr.Append(err, dst.Close()) }()

	if err := zstdx.WriteSeekable(dst, src, level); err != nil {
		return err
	}
	if fi, err := dst.Stat(); err == nil {
		log.Info("packed",
			zap.String("input", srcPath),
			zap.String("output", dstPath),
			zap.Int64("bytes", fi.Size()),
			zap.Stringer("level", level),
		)
	}
	return nil
}
