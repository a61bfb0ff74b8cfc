package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/abates/lync"
	"github.com/abates/lync/api"
	"github.com/abates/lync/discovery"
)

var (
	listen      string
	linger      time.Duration
	scanTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the controller and serve the REST API",
	Example: `  # Serial port on the default device
  lyncserver serve

  # Through a gateway, listening on all interfaces
  lyncserver serve --host 192.168.1.11 --listen :8000`,
	RunE: runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status [zone]",
	Short: "Print the state of one zone, or of all zones",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var setCmd = &cobra.Command{
	Use:   "set <zone> <power|mute|dnd|volume|source> <value>",
	Short: "Change a zone setting",
	Example: `  lyncserver set Office power on
  lyncserver set 3 volume 40
  lyncserver set Kitchen source Tuner`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Look for gateways on the local network",
	RunE:  runDiscover,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lyncserver %s\n", version)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config)")
	setCmd.Flags().DurationVar(&linger, "linger", time.Second, "How long to keep the connection open after sending")
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl, logger, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer ctl.Close(0)

	srv := &http.Server{
		Handler:      api.New(ctl, logger),
		Addr:         cfg.Listen,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving API", zap.String("addr", cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := withTimeout(5 * time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zone := lync.AllZoneName
	if len(args) == 1 {
		zone = args[0]
	}

	ctx, cancel := withTimeout(30 * time.Second)
	defer cancel()
	ctl, _, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer ctl.Close(0)

	if err := ctl.Update(ctx); err != nil {
		return err
	}
	zones, err := ctl.ZoneInfo(zone)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(zones)
}

func runSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zone, setting, value := args[0], args[1], args[2]

	ctx, cancel := withTimeout(30 * time.Second)
	defer cancel()
	ctl, _, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer ctl.Close(linger)

	// zone and source names are only known after the controller reports them
	if err := ctl.Update(ctx); err != nil {
		return err
	}

	switch setting {
	case "power", "mute", "dnd":
		state, err := lync.ParseOnOff(value)
		if err != nil {
			return err
		}
		switch setting {
		case "power":
			return ctl.SetPower(zone, state)
		case "mute":
			return ctl.SetMute(zone, state)
		}
		return ctl.SetDND(zone, state)
	case "volume":
		volume, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: volume %q", lync.ErrInvalidArgument, value)
		}
		return ctl.SetVolume(zone, volume)
	case "source":
		return ctl.SetSource(zone, value)
	}
	return fmt.Errorf("unknown setting %q", setting)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	gateways, err := scanner.Scan(cmd.Context())
	if err != nil {
		return err
	}
	if len(gateways) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No gateways found")
		return nil
	}
	for _, gw := range gateways {
		fmt.Fprintln(cmd.OutOrStdout(), gw)
	}
	return nil
}
