package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/insightloom/internal/web"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	serveListen      string
	serveMaxUploadMB int
	servePreviewRows int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser UI for uploading a file and asking questions",
	Example: `  insightloom serve
  insightloom serve --listen 0.0.0.0:8501 --max-upload-mb 50
  insightloom serve --provider openai --model gpt-4o`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			c.Listen = serveListen
		}
		if cmd.Flags().Changed("max-upload-mb") {
			c.MaxUploadMB = serveMaxUploadMB
		}
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}

		h := &web.Server{
			Analyzer:       eng,
			Log:            logger,
			MaxUploadBytes: c.MaxUploadBytes(),
			SessionIdle:    c.SessionIdle(),
			PreviewRows:    servePreviewRows,
		}
		srv := &http.Server{
			Addr:              c.Listen,
			Handler:           h.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		pterm.DefaultBox.WithTitle("InsightLoom").Println(fmt.Sprintf(
			"Open http://%s in your browser\nProvider: %s  Model: %s",
			c.Listen, c.Provider, c.Model))
		logger.Info("listening", logger.Args("addr", c.Listen, "max_upload_mb", c.MaxUploadMB))

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("shutdown signal", logger.Args("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8501", "address to listen on (overrides config)")
	serveCmd.Flags().IntVar(&serveMaxUploadMB, "max-upload-mb", 200, "largest accepted upload in MB (overrides config)")
	serveCmd.Flags().IntVar(&servePreviewRows, "preview-rows", 200, "rows shown in the uploaded table preview")
}
