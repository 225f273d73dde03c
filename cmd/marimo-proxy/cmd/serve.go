package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opensandbox/marimoproxy/internal/api"
	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/marimo"
	"github.com/opensandbox/marimoproxy/internal/metrics"
	"github.com/opensandbox/marimoproxy/internal/process"
	"github.com/opensandbox/marimoproxy/internal/proxy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy and the marimo-tools API",
	Long: `Serve marimo under <prefix>marimo and the tools API under <prefix>marimo-tools.
marimo is started on the first editor request and restarted on demand.
With --tools-only no editor is proxied and restart answers 503.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("config") {
			cfg.OverridePath, _ = cmd.Flags().GetString("config")
		}
		cfg.Token = token
		toolsOnly, _ := cmd.Flags().GetBool("tools-only")

		return serve(cfg, toolsOnly)
	},
}

func serve(cfg *config.Config, toolsOnly bool) error {
	override, err := config.LoadOverride(cfg.OverridePath)
	if err != nil {
		return err
	}
	if override != nil {
		log.Info().Str("path", cfg.OverridePath).Msg("marimo-proxy: override file loaded")
	}

	opts := &api.ServerOpts{
		Prefix:       cfg.ServicePrefix,
		ServeMetrics: cfg.MetricsAddr == "",
	}

	var sup *process.Supervisor
	if !toolsOnly {
		sup = process.NewSupervisor(process.SupervisorConfig{
			Override:     override,
			Port:         cfg.UpstreamPort,
			ExternalAddr: cfg.UpstreamAddr,
		})
		defer sup.Close()

		baseURL := config.Resolve(override).BaseURL()
		opts.States = sup
		opts.Proxy = proxy.New(baseURL, sup)
		if cfg.UpstreamAddr != "" {
			log.Info().Str("base_url", baseURL).Str("upstream", cfg.UpstreamAddr).Msg("marimo-proxy: proxying external marimo")
		} else {
			log.Info().Str("base_url", baseURL).Msg("marimo-proxy: marimo starts on first request")
		}
	} else {
		log.Info().Msg("marimo-proxy: tools only, editor proxy disabled")
	}

	if cfg.Token == "" {
		log.Warn().Msg("marimo-proxy: no token configured, API is unauthenticated")
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.StartMetricsServer(cfg.MetricsAddr)
		log.Info().Str("addr", cfg.MetricsAddr).Msg("marimo-proxy: metrics server started")
	}

	server := api.NewServer(marimo.NewConverter(override), cfg.Token, opts)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Str("prefix", cfg.ServicePrefix).Msg("marimo-proxy: starting server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("marimo-proxy: shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error closing server")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8888, "Port to listen on (overrides "+config.EnvPort+")")
	serveCmd.Flags().String("config", "", "TOML override file (overrides "+config.EnvOverridePath+")")
	serveCmd.Flags().Bool("tools-only", false, "Serve only the marimo-tools API")
}
