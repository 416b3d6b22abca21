package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/g90sdr/rigbridge/bridge"
	"github.com/g90sdr/rigbridge/config"
	"github.com/g90sdr/rigbridge/freqsync"
	"github.com/g90sdr/rigbridge/logging"
	"github.com/g90sdr/rigbridge/rig"
)

var version = "develop"

var rootFlags = struct {
	configFile  *string
	listen      *string
	flrigHost   *string
	flrigPort   *int
	displayHost *string
	displayPort *int
	noSync      *bool
	trace       *bool
}{}

var rootCmd = &cobra.Command{
	Use:   "g90bridge",
	Short: "Mediate one FLRig-controlled transceiver between hamlib clients and a spectrum display.",
	Run:   root,
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootFlags.configFile = rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")
	rootFlags.listen = rootCmd.PersistentFlags().StringP("listen", "l", "", "Local address the rigctld bridge listens on")
	rootFlags.flrigHost = rootCmd.PersistentFlags().String("flrig-host", "", "FLRig XML-RPC host")
	rootFlags.flrigPort = rootCmd.PersistentFlags().Int("flrig-port", 0, "FLRig XML-RPC port")
	rootFlags.displayHost = rootCmd.PersistentFlags().String("display-host", "", "Spectrum display rigctl host")
	rootFlags.displayPort = rootCmd.PersistentFlags().Int("display-port", 0, "Spectrum display rigctl port")
	rootFlags.noSync = rootCmd.PersistentFlags().Bool("no-sync", false, "Disable the display frequency synchronizer")
	rootFlags.trace = rootCmd.PersistentFlags().BoolP("trace", "t", false, "Trace all bridge requests and replies")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*rootFlags.configFile)
	if err != nil {
		return nil, err
	}
	// command line beats file and environment
	if *rootFlags.listen != "" {
		cfg.Bridge.Listen = *rootFlags.listen
	}
	if *rootFlags.flrigHost != "" {
		cfg.FLRig.Host = *rootFlags.flrigHost
	}
	if *rootFlags.flrigPort != 0 {
		cfg.FLRig.Port = *rootFlags.flrigPort
	}
	if *rootFlags.displayHost != "" {
		cfg.Display.Host = *rootFlags.displayHost
	}
	if *rootFlags.displayPort != 0 {
		cfg.Display.Port = *rootFlags.displayPort
	}
	if *rootFlags.noSync {
		cfg.Sync.Enabled = false
	}
	return cfg, nil
}

func root(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("G90 rig bridge", zap.String("version", version))

	done := make(chan struct{})
	services, err := startServices(cfg, done, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	services.shutdown()
}

// services bundles everything started by startServices. shutdown order
// matters: the bridge must force PTT off while the gateway is still
// connected.
type services struct {
	rig     *rig.Control
	bridge  *bridge.Bridge
	display *freqsync.DisplayClient
	sync    *freqsync.Synchronizer
}

func startServices(cfg *config.Config, done <-chan struct{}, logger *zap.Logger) (*services, error) {
	rigControl := rig.New(cfg.FLRig.Host, cfg.FLRig.Port, cfg.FLRig.MinInterval(), logger.Named("rig"))
	if err := rigControl.Connect(); err != nil {
		return nil, err
	}

	// The gateway is shared with the synchronizer, so the bridge does not
	// own it; shutdown releases it after the bridge closed.
	b, err := bridge.Listen(cfg.Bridge.Listen, rigControl, false, done, bridge.Options{
		PTTTimeout: cfg.Bridge.PTTTimeout(),
		Trace:      *rootFlags.trace,
	}, logger.Named("bridge"))
	if err != nil {
		rigControl.Disconnect()
		return nil, err
	}

	result := &services{rig: rigControl, bridge: b}
	if cfg.Sync.Enabled {
		display := freqsync.NewDisplayClient(cfg.Display.Host, cfg.Display.Port, logger.Named("display"))
		if err := display.Connect(); err != nil {
			logger.Warn("display not reachable, frequency sync disabled", zap.Error(err))
		} else {
			result.display = display
			result.sync = freqsync.New(rigControl, display, cfg.Sync.Interval(), logger.Named("sync"))
			result.sync.Start()
		}
	}
	return result, nil
}

func (s *services) shutdown() {
	if s.sync != nil {
		s.sync.Stop()
	}
	if s.display != nil {
		s.display.Close()
	}
	s.bridge.Close()
	s.rig.Disconnect()
}
