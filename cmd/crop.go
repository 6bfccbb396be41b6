package main

import (
	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/internal/batch"
	"github.com/sebnyberg/walkcrop/internal/job"
	"github.com/spf13/cobra"
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop one image into a PNG",
	Long: `Crop one image into a PNG.

The input is a local file (optionally zstd compressed), a data URL or an
http(s) URL. In fill mode the output has the size of the crop; in fit mode
the crop is letterboxed onto a white 550x280 frame.`,
	RunE: runCrop,
}

func init() {
	cropCmd.Flags().StringP("input", "i", "", "Input image file or URL")
	cropCmd.Flags().StringP("output", "o", "", "Output PNG file")
	cropCmd.Flags().Int("x", 0, "Left edge of the crop in source pixels")
	cropCmd.Flags().Int("y", 0, "Top edge of the crop in source pixels")
	cropCmd.Flags().Int("width", 0, "Crop width in source pixels")
	cropCmd.Flags().Int("height", 0, "Crop height in source pixels")
	cropCmd.Flags().Float64("rotation", 0, "Clockwise rotation in degrees, applied before cropping")
	cropCmd.Flags().String("mode", "fill", "Output mode (fill, fit)")
	cropCmd.MarkFlagRequired("input")
	cropCmd.MarkFlagRequired("output")
	cropCmd.MarkFlagRequired("width")
	cropCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(cropCmd)
}

func runCrop(cmd *cobra.Command, args []string) error {
	log, dec, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	x, _ := cmd.Flags().GetInt("x")
	y, _ := cmd.Flags().GetInt("y")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	rotation, _ := cmd.Flags().GetFloat64("rotation")
	modeStr, _ := cmd.Flags().GetString("mode")

	mode, err := walkcrop.ParseMode(modeStr)
	if err != nil {
		return err
	}
	j := job.Job{
		Source:   input,
		Output:   output,
		Crop:     job.Crop{X: x, Y: y, Width: width, Height: height},
		Rotation: rotation,
		Mode:     mode,
	}
	if err := j.Validate(); err != nil {
		return err
	}

	r := batch.Runner{Concurrency: 1, Logger: log, Decoder: dec}
	_, err = r.Run(cmd.Context(), []job.Job{j})
	return err
}
