package main

import (
	"fmt"
	"os"

	"github.com/sebnyberg/walkcrop"
	"github.com/sebnyberg/walkcrop/vipsx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:          "walkcrop",
	Short:        "Crop, rotate and letterbox hero images",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-dev", false, "Human readable console logs")
	pf.String("decoder", "go", "Image decoder (go, vips)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the logger and decoder selected by the root flags.
func setup(cmd *cobra.Command) (*zap.Logger, walkcrop.Decoder, error) {
	level, _ := cmd.Flags().GetString("log-level")
	dev, _ := cmd.Flags().GetBool("log-dev")
	decoder, _ := cmd.Flags().GetString("decoder")

	log, err := newLogger(level, dev)
	if err != nil {
		return nil, nil, err
	}
	dec, err := newDecoder(decoder)
	if err != nil {
		return nil, nil, err
	}
	return log, dec, nil
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func newDecoder(name string) (walkcrop.Decoder, error) {
	switch name {
	case "go":
		return walkcrop.DefaultDecoder, nil
	case "vips":
		vipsx.Start()
		return vipsx.Decoder{}, nil
	}
	return nil, fmt.Errorf("unknown decoder %q, use go or vips", name)
}
