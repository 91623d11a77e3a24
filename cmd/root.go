// Package cmd provides the command-line interface for stt with configuration
// drawn from several sources.
//
// Configuration System:
//
//	Values are resolved with this precedence, highest first:
//	1. Command-line flags (--config, --jobs, etc.)
//	2. STT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (STT_BACKEND_TIMEOUT, etc.)
//	4. Configuration files (.stt.yml)
//
// Environment Variables:
//
//	STT_CONFIG_FILE: Path to custom configuration file
//	STT_TEMPLATES_BASE_DIR: Directory relative template paths resolve against
//	STT_BACKEND_GO_BINARY: Go toolchain used to build templates
//	And more following the STT_<SECTION>_<OPTION> pattern
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stt",
	Short: "Text templates with Go code blocks",
	Long: `stt transforms text templates that mix literal text with Go code.

Templates use <# code #>, <#= expression #> and <#+ members #> blocks plus
<#@ template #>, <#@ import #>, <#@ property #> and <#@ include #>
directives. Each template is compiled into a small Go program, run once and
its output returned. Compiler errors and panics point at template lines.

Quick Start:
  stt init                        Create .stt.yml and example templates
  stt transform hello.txt.tt Ada  Transform one template
  stt render -o out               Transform every template under base_dir
  stt watch -o out                Re-render when templates change`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("failure already reported")

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		printFailure(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stt.yml, can also use STT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("base-dir", "", "directory relative template paths resolve against")
	rootCmd.PersistentFlags().Bool("no-cache", false, "do not reuse compiled templates")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("templates.base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	viper.BindPFlag("backend.no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
}

// initConfig selects the config file and enables STT_ environment overrides.
// A missing config file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stt")
	}

	viper.SetEnvPrefix("STT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
