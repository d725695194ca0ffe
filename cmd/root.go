package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/stencil/internal/config"
	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Render templates to static files with incremental rebuilds",
	Long: `Stencil renders a glob of templates against shared data into an output
directory. It records every file a pass reads and skips passes in which
none of them changed.

Quick Start:
  stencil build                   Render every entry once
  stencil watch                   Rebuild on change
  stencil serve                   Rebuild on change and serve with live reload`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps the error returned by Execute to a process exit status:
// 2 for configuration errors, 1 for any other failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case serrors.IsConfigError(err):
		return 2
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .stencil.yml, can also use STENCIL_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	bindFlags(viper.GetViper(), flags, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})
}

// bindFlags binds each config key to the flag of the given name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if flag := flags.Lookup(name); flag != nil {
			_ = v.BindPFlag(key, flag)
		}
	}
}

// initConfig loads .env, then the configuration file.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. STENCIL_CONFIG_FILE environment variable
//  3. .stencil.yml in the current directory
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STENCIL_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stencil")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
