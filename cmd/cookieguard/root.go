package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olegrjumin/cookieguard/internal/app"
	"github.com/olegrjumin/cookieguard/internal/config"
	"github.com/olegrjumin/cookieguard/internal/logging"
)

var (
	// Global flags
	logLevel string
	driver   string
	output   string
)

var rootCmd = &cobra.Command{
	Use:   "cookieguard",
	Short: "CookieGuard - cookie consent compliance scanner",
	Long: `CookieGuard loads websites in a headless browser, classifies the cookies
they set, profiles the consent banner and interacts with it, and rates each
domain against GDPR, ePrivacy and TTDSG requirements.

Settings come from environment variables (see README); flags override them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "override page driver (chrome, static)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "summary", "result format (summary, json)")
}

// loadConfig reads the environment and applies flag overrides
func loadConfig() *config.Config {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if driver != "" {
		cfg.BrowserDriver = driver
	}
	return cfg
}

// newApp builds the scanner; logs go to stderr so stdout carries results only
func newApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: os.Stderr})
	return app.New(ctx, cfg, logger)
}
