//go:build windows
// +build windows

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/g90sdr/rigbridge/logging"
)

const serviceName = "g90bridge"

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run the rig bridge as Windows service (must not be used on the command line)",
	Run:   service,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the rig bridge as Windows service",
	Run:   install,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the Windows service",
	Run:   uninstall,
}

func init() {
	rootCmd.AddCommand(serviceCmd, installCmd, uninstallCmd)
}

func service(cmd *cobra.Command, args []string) {
	runningAsService, err := svc.IsWindowsService()
	if !runningAsService || err != nil {
		fmt.Fprintln(os.Stderr, "not running as Windows service, do not use the 'service' command on the command line!")
		os.Exit(1)
	}

	svc.Run(serviceName, new(serviceHandler))
}

func install(cmd *cobra.Command, args []string) {
	fmt.Printf("G90 rig bridge %s\n", version)
	fmt.Println("installing g90bridge as Windows service")

	serviceFilename, err := exePath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	serviceArgs := []string{"service"}
	if *rootFlags.configFile != "" {
		serviceArgs = append(serviceArgs, "-c", *rootFlags.configFile)
	}
	if *rootFlags.listen != "" {
		serviceArgs = append(serviceArgs, "-l", *rootFlags.listen)
	}
	if *rootFlags.flrigHost != "" {
		serviceArgs = append(serviceArgs, "--flrig-host", *rootFlags.flrigHost)
	}
	if *rootFlags.flrigPort != 0 {
		serviceArgs = append(serviceArgs, "--flrig-port", strconv.Itoa(*rootFlags.flrigPort))
	}
	if *rootFlags.displayHost != "" {
		serviceArgs = append(serviceArgs, "--display-host", *rootFlags.displayHost)
	}
	if *rootFlags.displayPort != 0 {
		serviceArgs = append(serviceArgs, "--display-port", strconv.Itoa(*rootFlags.displayPort))
	}
	if *rootFlags.noSync {
		serviceArgs = append(serviceArgs, "--no-sync")
	}

	serviceConfig := mgr.Config{
		StartType:   mgr.StartAutomatic,
		DisplayName: "G90 Rig Bridge",
		Description: "Mediate one FLRig-controlled transceiver between hamlib clients and a spectrum display",
	}

	services, err := mgr.Connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer services.Disconnect()

	existing, err := services.OpenService(serviceName)
	if err == nil {
		existing.Close()
		fmt.Fprintf(os.Stderr, "the %s service already exists\n", serviceName)
		os.Exit(1)
	}

	installed, err := services.CreateService(serviceName, serviceFilename, serviceConfig, serviceArgs...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer installed.Close()

	err = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)
	if err != nil {
		installed.Delete()
		fmt.Fprintf(os.Stderr, "cannot setup log for the %s service: %v\n", serviceName, err)
		os.Exit(1)
	}
	fmt.Println("the g90bridge Windows service was successfully installed")
}

func uninstall(cmd *cobra.Command, args []string) {
	fmt.Printf("G90 rig bridge %s\n", version)
	fmt.Println("uninstalling the g90bridge Windows service")

	services, err := mgr.Connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer services.Disconnect()

	installed, err := services.OpenService(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "the %s Windows service is currently not installed: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer installed.Close()

	if err := installed.Delete(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := eventlog.Remove(serviceName); err != nil {
		fmt.Fprintf(os.Stderr, "cannot remove log for the %s service: %v\n", serviceName, err)
		os.Exit(1)
	}
	fmt.Println("the g90bridge Windows service was successfully uninstalled")
}

func exePath() (string, error) {
	prog := os.Args[0]
	p, err := filepath.Abs(prog)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	if err == nil {
		if !fi.Mode().IsDir() {
			return p, nil
		}
		err = fmt.Errorf("%s is directory", p)
	}
	if filepath.Ext(p) == "" {
		p += ".exe"
		fi, err := os.Stat(p)
		if err == nil {
			if !fi.Mode().IsDir() {
				return p, nil
			}
			err = fmt.Errorf("%s is directory", p)
		}
	}
	return "", err
}

type serviceHandler struct{}

func (s *serviceHandler) Execute(args []string, requests <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown
	changes <- svc.Status{State: svc.StartPending}

	cfg, err := loadConfig()
	if err != nil {
		return true, 1
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return true, 1
	}
	defer logger.Sync()

	done := make(chan struct{})
	running, err := startServices(cfg, done, logger)
	if err != nil {
		logger.Error("starting the rig bridge failed", zap.Error(err))
		return true, 1
	}

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
	for {
		c := <-requests
		switch c.Cmd {
		case svc.Interrogate:
			changes <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			changes <- svc.Status{State: svc.StopPending}
			close(done)
			running.shutdown()
			return
		default:
			logger.Warn("unexpected control request", zap.Uint32("cmd", uint32(c.Cmd)))
		}
	}
}
