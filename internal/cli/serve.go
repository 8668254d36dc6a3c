package cli

import (
	"fmt"
	"time"

	"jobapplicator/internal/config"
	"jobapplicator/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface for interactive runs",
	Long: `Start an HTTP server with a form for applicant details and job criteria.
Submitting the form runs the pipeline and shows the outcomes, with a link to
download them as CSV.

Available endpoints:
- GET /: Application form
- POST /run: Run the pipeline (form or JSON body)
- GET /runs/{id}/export.csv: Download the outcomes of a run
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
	serveCmd.Flags().Duration("run-timeout", 0, "Upper bound for a single run (overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	overrides := []struct {
		flag   string
		target *string
	}{
		{"port", &cfg.Server.Port},
		{"host", &cfg.Server.Host},
		{"tls-mode", &cfg.Server.TLS.Mode},
		{"cert-file", &cfg.Server.TLS.CertFile},
		{"key-file", &cfg.Server.TLS.KeyFile},
		{"ca-file", &cfg.Server.TLS.CAFile},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.target, _ = flags.GetString(o.flag)
		}
	}
	if flags.Changed("run-timeout") {
		cfg.Server.RunTimeout, _ = flags.GetDuration("run-timeout")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	applyServeFlags(cmd, cfg)

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	pipeline, om, cleanup, err := newPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	watcher, err := config.NewPromptWatcher(cfg, 500*time.Millisecond, func() {
		logger.Info("Prompt files reloaded")
	})
	if err != nil {
		logger.Warn("Prompt file watching disabled", "error", err)
	} else if watcher != nil {
		go watcher.Run(cmd.Context())
	}

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), pipeline, om, logger)
	return srv.Start(cmd.Context())
}
