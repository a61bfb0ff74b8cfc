// Lyncserver connects to an HTD Lync controller and exposes it over HTTP.
//
// Usage:
//
//	lyncserver serve [flags]
//	lyncserver status [zone]
//	lyncserver set <zone> <power|mute|dnd|volume|source> <value>
//	lyncserver discover
//	lyncserver version
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abates/lync"
	"github.com/abates/lync/internal/config"
	"github.com/abates/lync/internal/logging"
)

var version = "dev"

var (
	configPath string
	transportF string
	device     string
	host       string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "lyncserver",
	Short:         "HTD Lync controller client",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML config file")
	flags.StringVar(&transportF, "transport", "", "Transport to use (serial, gateway)")
	flags.StringVar(&device, "device", "", "Serial device path")
	flags.StringVar(&host, "host", "", "Gateway host name or address")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every frame sent and received")

	rootCmd.AddCommand(serveCmd, statusCmd, setCmd, discoverCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies command line overrides on top of the config file.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	if transportF != "" {
		cfg.Transport = transportF
	}
	if device != "" {
		cfg.Serial.Device = device
	}
	if host != "" {
		cfg.Gateway.Host = host
		if transportF == "" {
			cfg.Transport = config.TransportGateway
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, cfg.Validate()
}

// connect builds a controller from the configuration and connects it,
// retrying a few times before giving up.
func connect(ctx context.Context, cfg config.Config) (*lync.Controller, *zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	t, err := cfg.NewTransport()
	if err != nil {
		return nil, nil, err
	}

	options := append(cfg.Options(), lync.WithLogger(logger))
	ctl := lync.New(t, options...)
	logger.Info("Connecting", zap.String("transport", fmt.Sprint(t)))
	if err := ctl.ConnectWithRetry(ctx); err != nil {
		return nil, logger, fmt.Errorf("can't connect to the Lync: %w", err)
	}
	return ctl, logger, nil
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
