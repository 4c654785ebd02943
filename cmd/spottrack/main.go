// Package main provides the spottrack CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LdDl/spottrack-go/config"
	"github.com/LdDl/spottrack-go/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "spottrack",
	Short:         "Detect spots in image sequences and link them into tracks",
	Long:          `spottrack finds blob-like spots with LoG or Hessian detectors, links them frame to frame with a pluggable cost and closes the gaps of the resulting tracks. It also inspects and converts distance cache files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	logLevel   string
	logFormat  string
	pixelSize  float64
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().Float64Var(&pixelSize, "pixel-size", 1, "Physical size of a pixel")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(costCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger() (*logging.Logger, error) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
	switch strings.ToLower(logFormat) {
	case "json":
		return logging.NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	case "text", "":
		return logging.NewTextLogger(os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
}
