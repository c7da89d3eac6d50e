// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the minutes CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/internal/logging"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfg      types.ClientConfig
	logger   = zap.NewNop()
	closeLog = func() error { return nil }
)

// rootCmd is the base command for the minutes CLI.
var rootCmd = &cobra.Command{
	Use:   "minutes",
	Short: "Turn meeting transcripts into minutes",
	Long: `minutes uploads a .txt meeting transcript to the rapid-minutes backend,
follows the processing job to completion, and saves the generated minutes as
Word and PDF documents.

Use "minutes process" for a one-shot run or "minutes ui" for the interactive
terminal interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if cmd.Name() == "ui" && cfg.Log.File == "" {
			if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
				return fmt.Errorf("creating store directory: %w", err)
			}
			cfg.Log.File = filepath.Join(cfg.Store.Dir, "minutes.log")
		}
		logger, closeLog, err = logging.New(cfg.Log, os.Stderr)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./minutes.yaml or ~/.config/rapid-minutes/minutes.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "backend base URL")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")

	viper.BindPFlag("backend.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("minutes")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "rapid-minutes"))
		}
	}

	viper.SetEnvPrefix("MINUTES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables can
// override keys that no config file mentions.
func setDefaults(v *viper.Viper) {
	d := types.DefaultClientConfig()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.user_agent", d.Backend.UserAgent)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("backend.retry_base_delay", d.Backend.RetryBaseDelay)
	v.SetDefault("upload.max_bytes", d.Upload.MaxBytes)
	v.SetDefault("upload.extension", d.Upload.Extension)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.failure_threshold", d.Poll.FailureThreshold)
	v.SetDefault("download.output_dir", d.Download.OutputDir)
	v.SetDefault("download.artifacts", d.Download.Artifacts)
	v.SetDefault("download.success_revert", d.Download.SuccessRevert)
	v.SetDefault("download.error_revert", d.Download.ErrorRevert)
	v.SetDefault("notify.auto_dismiss", d.Notify.AutoDismiss)
	v.SetDefault("notify.suggestion_delay", d.Notify.SuggestionDelay)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("store.dir", d.Store.Dir)
}

// loadConfig decodes the merged viper settings over the defaults.
func loadConfig() (types.ClientConfig, error) {
	c := types.DefaultClientConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
