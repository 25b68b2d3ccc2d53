// Package cmd provides the command-line interface for cydonia.
//
// Every command that works on a project takes the project directory as its
// optional first argument (default "."). Site settings come from
// <dir>/cydonia.toml, overridden by CYDONIA_ environment variables and by
// command flags such as --out. Logging is controlled by the persistent
// --log-level and --log-format flags or CYDONIA_LOG_LEVEL and
// CYDONIA_LOG_FORMAT.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cydonia",
	Short: "A minimal static site generator for markdown blogs",
	Long: `Cydonia turns a directory of dated markdown posts into a static site.

Quick Start:
  cydonia init blog               Create a project with a starter post
  cydonia build blog              Render the site into blog/out
  cydonia watch blog              Re-render on every change
  cydonia serve blog              Preview with live reload on http://127.0.0.1:3000`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	viper.SetEnvPrefix("CYDONIA")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// newLogger builds the command logger from the persistent flags.
func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    viper.GetString("log-format"),
		Output:    cmd.ErrOrStderr(),
		Component: "cli",
	}), nil
}

// projectDir returns the project directory argument.
func projectDir(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}

// loadManifest resolves the project named by args, letting the command's
// flags override the manifest.
func loadManifest(cmd *cobra.Command, args []string) (*config.Manifest, error) {
	return config.Load(projectDir(args), cmd.Flags())
}
