package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rpictl/internal/scanner"
	"rpictl/internal/ui"

	"github.com/spf13/cobra"
)

func newScanCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		timeout time.Duration
		workers int
		subnet  string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the local /24 subnet for hosts with an open port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg := root.manager.GetConfig().Scan
			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Timeout
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Workers
			}

			s := scanner.New(scanner.Options{
				Port:    port,
				Timeout: timeout,
				Workers: workers,
				Logger:  root.logger,
			})

			if subnet == "" {
				subnet = scanner.LocalIP()
			}
			hosts, err := scanner.Candidates(subnet)
			if err != nil {
				return err
			}
			root.logger.Info("scanning", "subnet", subnet+"/24", "port", port, "workers", workers)

			devices := s.ScanHosts(ctx, hosts)
			if stdoutIsTerminal() {
				fmt.Println(ui.DeviceTable(devices))
				return nil
			}
			for _, d := range devices {
				fmt.Printf("%s\t%s\n", d.IP, d.Hostname)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", scanner.DefaultPort, "TCP port to probe")
	cmd.Flags().DurationVar(&timeout, "timeout", scanner.DefaultTimeout, "per-host connect timeout")
	cmd.Flags().IntVar(&workers, "workers", scanner.DefaultWorkers, "concurrent probes")
	cmd.Flags().StringVar(&subnet, "from", "", "any address in the /24 to scan (default: local address)")
	return cmd
}

func newPingCmd(root *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		control bool
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the device accepts TCP connections on its SSH or control port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := root.target()
			if err != nil {
				return err
			}
			addr := host.SSHAddr()
			if control {
				addr = host.ControlAddr()
			}

			start := time.Now()
			if err := scanner.Probe(cmd.Context(), host.IP, portOf(addr), timeout); err != nil {
				return err
			}
			fmt.Printf("%s is reachable (%s)\n", addr, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	withTimeout(cmd, &timeout, scanner.DefaultProbeTimeout)
	cmd.Flags().BoolVar(&control, "control", false, "probe the control server port instead of SSH")
	return cmd
}

func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}
