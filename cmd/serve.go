package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebnyberg/walkcrop/internal/server"
	"github.com/sebnyberg/walkcrop/source"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the crop API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().IntP("concurrency", "c", 0, "Images processed at once (default number of CPUs)")
	serveCmd.Flags().Bool("allow-url-sources", false, "Fetch http(s) source URLs sent by clients (public addresses only)")
	serveCmd.Flags().Duration("fetch-timeout", 10*time.Second, "Timeout for fetching source URLs")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Time allowed for running requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, dec, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	addr, _ := cmd.Flags().GetString("addr")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	allowURLs, _ := cmd.Flags().GetBool("allow-url-sources")
	fetchTimeout, _ := cmd.Flags().GetDuration("fetch-timeout")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	handler := server.New(server.Config{
		Concurrency:     concurrency,
		Decoder:         dec,
		AllowURLSources: allowURLs,
		Loader: &source.Loader{
			Client:  source.PublicClient(fetchTimeout),
			Decoder: dec,
		},
	}, log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return multierr.Append(err, handler.Close())
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(sctx)
	if lerr := <-errc; !errors.Is(lerr, http.ErrServerClosed) {
		err = multierr.Append(err, lerr)
	}
	return multierr.Append(err, handler.Close())
}
