package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/internal/preview"
	"github.com/sebnyberg/walkcrop/internal/session"
	"github.com/sebnyberg/walkcrop/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the crop dialog and print the matching crop flags",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringP("input", "i", "", "Input image file or URL (at most 5 MiB)")
	previewCmd.Flags().StringP("output", "o", "", "Output PNG file")
	previewCmd.Flags().Float64("container-width", 600, "Dialog width")
	previewCmd.Flags().Float64("container-height", 400, "Dialog height")
	previewCmd.Flags().Float64("zoom", session.MinZoom, "Zoom (1 to 3)")
	previewCmd.Flags().Float64("pan-x", 0, "Horizontal pan in dialog pixels")
	previewCmd.Flags().Float64("pan-y", 0, "Vertical pan in dialog pixels")
	previewCmd.Flags().Float64("rotation", 0, "Rotation in degrees, as left by the slider and quarter turn buttons")
	previewCmd.Flags().String("mode", "fill", "Output mode (fill, fit)")
	previewCmd.MarkFlagRequired("input")
	previewCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	log, dec, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	cw, _ := cmd.Flags().GetFloat64("container-width")
	ch, _ := cmd.Flags().GetFloat64("container-height")
	zoom, _ := cmd.Flags().GetFloat64("zoom")
	panX, _ := cmd.Flags().GetFloat64("pan-x")
	panY, _ := cmd.Flags().GetFloat64("pan-y")
	rotation, _ := cmd.Flags().GetFloat64("rotation")
	modeStr, _ := cmd.Flags().GetString("mode")

	mode, err := walkcrop.ParseMode(modeStr)
	if err != nil {
		return err
	}
	loader := source.Loader{Decoder: dec}
	img, err := loader.Load(cmd.Context(), input)
	if err != nil {
		return err
	}

	s := session.New()
	b := img.Bounds()
	if err := s.SetMedia(b.Dx(), b.Dy()); err != nil {
		return err
	}
	if err := s.SetContainer(cw, ch); err != nil {
		return err
	}
	s.SetMode(mode)
	s.SetZoom(zoom)
	s.SetAngle(rotation)
	s.SetPan(panX, panY)

	var buf bytes.Buffer
	if err := preview.Write(&buf, img, s); err != nil {
		return err
	}
	if err := os.WriteFile(output, buf.Bytes(), 0640); err != nil {
		return fmt.Errorf("write file %q err, %w", output, err)
	}

	req, err := s.Request()
	if err != nil {
		return err
	}
	log.Debug("preview written",
		zap.String("output", output),
		zap.Stringer("region", req.Region),
		zap.Float64("zoom", s.Zoom()),
	)
	r := req.Region
	fmt.Fprintf(cmd.OutOrStdout(), "--x %d --y %d --width %d --height %d --rotation %g --mode %s\n",
		r.Min.X, r.Min.Y, r.Dx(), r.Dy(), req.Rotation, req.Mode)
	return nil
}
