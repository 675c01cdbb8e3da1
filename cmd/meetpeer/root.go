package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"meetrelay/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagServer   string
	flagLogLevel string
	flagConfig   string
)

var rootCmd = &cobra.Command{
	Use:   "meetpeer",
	Short: "Headless meeting peer for the meetrelay signaling server",
	Long: `meetpeer creates meetings in the directory and joins them as a WebRTC peer,
negotiating a data channel through the relay. It is meant for smoke testing a
deployment without a browser.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "relay base URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "relay config file to take signal defaults from")

	rootCmd.AddCommand(createCmd, joinCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger() (*zap.SugaredLogger, error) {
	l, err := logger.New(flagLogLevel)
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// signalURL maps the relay base URL onto its WebSocket endpoint.
func signalURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
