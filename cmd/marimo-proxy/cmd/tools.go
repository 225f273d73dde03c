package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/executable"
	"github.com/opensandbox/marimoproxy/internal/marimo"
	"github.com/opensandbox/marimoproxy/pkg/client"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.ipynb> <output.py>",
	Short: "Convert a Jupyter notebook to a marimo notebook",
	Long: `Convert a Jupyter notebook with marimo convert.
Runs locally by default; with --remote the running server does the conversion
and the paths are resolved on the server.
Example: marimo-proxy convert analysis.ipynb analysis.py`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]

		remote, _ := cmd.Flags().GetBool("remote")
		if remote {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := client.NewClient(serverURL, token).Convert(ctx, input, output); err != nil {
				return fmt.Errorf("failed to convert: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		}

		override, err := overrideFromFlags(cmd)
		if err != nil {
			return err
		}
		result, err := marimo.NewConverter(override).Convert(context.Background(), input, output)
		if err != nil {
			return fmt.Errorf("failed to convert: %w", err)
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("marimo convert exited with code %d: %s", result.ExitCode, strings.TrimSpace(result.Message()))
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the marimo editor behind a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := client.NewClient(serverURL, token).Restart(ctx)
		if err != nil {
			return fmt.Errorf("failed to restart: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that a marimo-proxy server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.NewClient(serverURL, token).Health(ctx); err != nil {
			return fmt.Errorf("server unhealthy: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show the resolved marimo settings and launch command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		override, err := overrideFromFlags(cmd)
		if err != nil {
			return err
		}
		settings := config.Resolve(override)
		argv, err := executable.Command(settings)
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]interface{}{
				"command":    argv,
				"marimoPath": settings.MarimoPath(),
				"uvxPath":    settings.UvxPath(),
				"timeout":    settings.Timeout(),
				"baseUrl":    settings.BaseURL(),
			}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "command:  %s\n", strings.Join(argv, " "))
		fmt.Fprintf(out, "timeout:  %ds\n", settings.Timeout())
		fmt.Fprintf(out, "base url: %s\n", settings.BaseURL())
		return nil
	},
}

// overrideFromFlags reads --config, falling back to the environment.
func overrideFromFlags(cmd *cobra.Command) (*config.Override, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = getEnvOrDefault(config.EnvOverridePath, "")
	}
	return config.LoadOverride(path)
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(healthCmd)

	convertCmd.Flags().Bool("remote", false, "Convert on the running server")
	convertCmd.Flags().String("config", "", "TOML override file")
	locateCmd.Flags().String("config", "", "TOML override file")
	locateCmd.Flags().Bool("json", false, "Output as JSON")
}
