package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/audio-scribe/backend/internal/api"
)

const shutdownTimeout = 30 * time.Second

// serveCmd runs the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  `Serve the download, playback and transcription API. Transcriptions run as background jobs.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		router := api.NewRouter(ctx, a.cfg, &api.Services{
			Downloader:  a.downloader,
			Transcriber: a.transcriber,
			Editor:      a.editor,
			Store:       a.store,
			Registry:    a.registry,
			Jobs:        a.jobs,
		}, a.logger)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		a.logger.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"audio":    a.cfg.AudioPath,
			"registry": a.cfg.RegistryPath,
			"engine":   a.engines.DefaultEngine(),
			"engines":  a.engines.EngineNames(),
		}).Info("Starting server")

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("HTTP shutdown incomplete")
		}
		if err := a.jobs.Wait(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Background jobs still running; they will be marked failed on next start")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
