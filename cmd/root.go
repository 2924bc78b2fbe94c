// Package cmd provides the command-line interface for folio with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --format, etc.) - highest priority
//	2. FOLIO_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (FOLIO_RENDER_FORMAT, etc.)
//	4. Configuration files (.folio.yml) - lowest priority
//
// Environment Variables:
//
//	FOLIO_CONFIG_FILE: Path to custom configuration file
//	FOLIO_RENDER_FORMAT: Override output format
//	FOLIO_SERVER_PORT: Override preview server port
//	FOLIO_STORE_DIR: Override the template and image store location
//	And many more following the FOLIO_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Render markdown documents with variables, components and embedded images",
	Long: `folio turns a markdown document plus variable bindings and images into a
fully resolved document, rendered as HTML, styled terminal output or plain
markdown.

Key Features:
  • Template variables, lists, conditionals and computed expressions
  • Charts, timelines, progress bars, task lists, alerts and stat cards
  • Local images embedded as data URIs
  • Live preview server with websocket reload
  • Built-in and saved document templates

Quick Start:
  folio templates list            List available templates
  folio templates new report      Start a document from a template
  folio render doc.md             Render to HTML on stdout
  folio serve doc.md              Live preview in the browser
  folio check doc.md              Report problems without rendering`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .folio.yml, can also use FOLIO_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "directory for saved templates and images")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store"))
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. FOLIO_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .folio.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("FOLIO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".folio")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	// A missing or malformed file falls back to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
