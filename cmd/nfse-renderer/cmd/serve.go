package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/app"
	"github.com/rezonia/nfse-renderer/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBodyBytes int64
	workers      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server that renders NFS-e XML.

The API provides endpoints for:
  - POST /api/v1/nfse/pdf       - Render XML into a PDF or ZIP
  - POST /api/v1/nfse/validate  - Parse XML and summarize its invoices
  - POST /nfse/gerar-pdf        - Same as /api/v1/nfse/pdf
  - GET  /health                - Health check with cache status

Requests carry either a JSON body {"xml", "mode", "zipName"} or the raw XML
with mode and zipName in the query string.

Examples:
  # Start server on default port
  nfse-renderer serve

  # Render archives with four workers
  nfse-renderer serve --address :9000 --workers 4

  # Start in debug mode
  nfse-renderer serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
	serveCmd.Flags().Int64Var(&maxBodyBytes, "max-body", 20<<20, "Maximum request body in bytes")
	serveCmd.Flags().IntVar(&workers, "workers", 1, "Records rendered in parallel for archives")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// flags override file and environment only when given
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Server.Address = serverAddr
	}
	if flags.Changed("debug") {
		cfg.Server.Debug = serverDebug
	}
	if flags.Changed("read-timeout") {
		cfg.Server.ReadTimeout = readTimeout
	}
	if flags.Changed("write-timeout") {
		cfg.Server.WriteTimeout = writeTimeout
	}
	if flags.Changed("max-body") {
		cfg.Server.MaxBodyBytes = maxBodyBytes
	}
	if flags.Changed("workers") {
		cfg.Render.Workers = workers
	}

	log, err := newLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close(context.Background()) //nolint:errcheck

	srv := server.NewServer(&server.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		VerifyURL:    cfg.Layout.VerifyURL,
		Debug:        cfg.Server.Debug,
	}, svc, log)

	log.Info("starting server", zap.String("address", cfg.Server.Address), zap.Int("workers", cfg.Render.Workers))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
