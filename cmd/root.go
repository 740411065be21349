// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/plattops/xviol/internal/config"
	"github.com/plattops/xviol/internal/observability"
)

// contextKey scopes values this package stores on the command context.
type contextKey string

// configKey is where the root command parks the validated configuration for
// its subcommands.
const configKey contextKey = "config"

var (
	cfgFile string
	verbose bool
)

// NewRootCommand assembles the xviol command tree. Every call returns a fresh
// instance so no cobra or viper state leaks between executions.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xviol",
		Short: "Export JFrog Xray watch violations with responsible users",
		Long: `xviol pages through every security violation of an Xray watch, flattens
them into a spreadsheet-ready report, and joins on the users responsible
for each impacted repository (resolved through the repository's manage
group).`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version, help and completion must work without a server or token.
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}
			if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
				return nil
			}

			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "xviol"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "xviol"})
				return err
			}
			if verbose {
				cfg.Logger.Level = "debug"
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded",
				zap.String("server", cfg.Server.BaseURL()),
				zap.String("format", cfg.Export.Format),
				zap.Bool("enrich", cfg.Enrich.Enabled),
			)

			// Park the validated config on the context for the subcommands.
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./xviol.yaml or ~/.xviol/xviol.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newWatchesCmd())
	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree under the signal-aware context from main.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Aborted by signal")
		} else {
			observability.GetLogger().Error("Command failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// initializeConfig layers the config file and environment onto v, then binds
// the invoked command's flags so the usual precedence applies
// (flag > env > file > default).
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("could not resolve config path %q: %w", cfgFile, err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".xviol"))
		}
		v.SetConfigName("xviol")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("XVIOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment cover everything.
	}

	return bindFlags(cmd, v)
}

// bindFlags connects flags to their config keys. Only flags the invoked
// command actually declares are bound.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	bindings := map[string]string{
		"output":     "export.output",
		"format":     "export.format",
		"page-size":  "export.page_size",
		"output-dir": "export.output_dir",
		"keep-raw":   "export.keep_raw",
	}
	for name, key := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}
	return nil
}

// getConfigFromContext pulls the validated config stored by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}
