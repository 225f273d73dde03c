package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/logging"
)

var (
	serverURL string
	token     string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "marimo-proxy",
	Short: "Serve marimo behind a notebook server and manage it",
	Long: `marimo-proxy runs the marimo editor behind a Jupyter-style service prefix,
starting it on the first request, and exposes two tools next to it:
converting Jupyter notebooks to marimo and restarting the editor process.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(resolveLogLevel(cmd))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", getEnvOrDefault("JUPYTERMARIMOPROXY_URL", "http://localhost:8888"), "marimo-proxy base URL including the service prefix")
	rootCmd.PersistentFlags().StringVar(&token, "token", getEnvOrDefault(config.EnvToken, os.Getenv(config.EnvHubToken)), "API token")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error; overrides "+config.EnvLogLevel+")")
}

// resolveLogLevel prefers --log-level, then the service config.
func resolveLogLevel(cmd *cobra.Command) string {
	if cmd.Flags().Changed("log-level") {
		return logLevel
	}
	cfg, err := config.Load()
	if err != nil {
		return logLevel
	}
	return cfg.LogLevel
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
