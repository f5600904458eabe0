// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/internal/client"
	"github.com/miniatlas/atlasctl/internal/config"
	"github.com/miniatlas/atlasctl/internal/observability"
)

var (
	cfgFile string
	// cfg is the resolved configuration for the current invocation, populated
	// by the root PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

// NewRootCommand builds the atlasctl command tree. A fresh tree per call
// keeps flag state from leaking between invocations in tests.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atlasctl",
		Short: "atlasctl is the terminal client for the mini-Atlas browser agent.",
		Long: `atlasctl starts browser automation sessions on a mini-Atlas backend,
watches their progress, and renders the step transcript as the agent works.
All reasoning and browser control happen on the backend; this tool only
observes and issues commands.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeViper(cmd); err != nil {
				return err
			}

			loaded := config.NewDefaultConfig()
			if err := viper.Unmarshal(loaded); err != nil {
				// Fall back to a usable logger so the error itself is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "atlasctl"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			if err := loaded.ExpandPaths(); err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cfg = loaded

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("configuration loaded",
				zap.String("base_url", cfg.API.BaseURL),
				zap.Duration("poll_interval", cfg.Poller.Interval),
			)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "backend base URL (overrides config/env)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newSessionsCmd(),
		newStopCmd(),
		newDeleteCmd(),
		newResumeCmd(),
		newHealthCmd(),
		newReportCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with the given context. Errors are logged
// here; callers only decide the exit code.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeViper wires the config file, ATLASCTL_* environment variables,
// and persistent flags, in ascending precedence.
func initializeViper(cmd *cobra.Command) error {
	viper.Reset()
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ATLASCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	if flag := cmd.Flags().Lookup("base-url"); flag != nil && flag.Changed {
		if err := viper.BindPFlag("api.base_url", flag); err != nil {
			return err
		}
	}
	return nil
}

// newAPIClient builds the REST client from the resolved configuration.
func newAPIClient() (*client.Client, error) {
	return client.New(cfg.API, observability.GetLogger())
}
