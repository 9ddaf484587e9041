// Package main provides the ruleforge binary entry point.
// Ruleforge extracts rule candidates from coding guidelines, drives their
// review, and assembles approved rules into packs.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harmonizehq/ruleforge/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ruleforge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Rule candidate review engine",
		Long: `Ruleforge turns coding guidelines into reviewable rule candidates.

It drives an extraction backend (with a deterministic offline fallback),
tracks each candidate through the review lifecycle, and assembles approved
rules into packs for submission.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	loadApp := func() (*App, error) {
		configureLogging(logLevel)
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return NewApp(cfg)
	}

	cmd.AddCommand(serveCmd(loadApp))
	cmd.AddCommand(reviewCmd(loadApp))
	cmd.AddCommand(extractCmd(loadApp))
	cmd.AddCommand(packCmd(loadApp))
	cmd.AddCommand(projectsCmd(loadApp))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}
