package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/gobar/internal/config"
	"github.com/MeKo-Tech/gobar/internal/logging"
	"github.com/MeKo-Tech/gobar/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Releases the log file opened for --log-file.
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gobar",
	Short: "Code 128 barcode generator",
	Long: `gobar renders text as a Code 128 barcode on a fixed 512x256 black and white raster
and returns it as an image, as base64 encoded JPEG or as raw JPEG bytes.

This tool provides:
- Single barcode generation from the command line
- Parallel batch generation from a text file
- An HTTP and WebSocket server with Prometheus metrics
- Verification of the output with a Code 128 reader

Examples:
  gobar generate "ORDER-4711" --mode image --output order.png
  gobar batch labels.txt --output-dir out/ --progress
  gobar serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "gobar version "+version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnFinalize(closeLog)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/gobar, /etc/gobar)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file (rotated)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		// Logs go to stderr: stdout carries generated artifacts.
		closer, err := logging.Setup(cmd.ErrOrStderr(), logging.Options{
			Level:   globalConfig.LogLevel,
			Verbose: globalConfig.Verbose,
			File:    globalConfig.LogFile,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		closeLog()
		logCloser = closer
		return nil
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			cfg := config.DefaultConfig()
			return &cfg
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
