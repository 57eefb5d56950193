package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rpictl/internal/scanner"
	"rpictl/internal/ssh"

	"github.com/spf13/cobra"
)

// connectSSH łączy się z urządzeniem; błąd pochodzi z LastError()
func (r *rootOptions) connectSSH(ctx context.Context) (*ssh.Client, error) {
	client, err := r.sshClient()
	if err != nil {
		return nil, err
	}
	if !client.Connect(ctx) {
		return nil, client.LastError()
	}
	return client, nil
}

func syncTree(client *ssh.Client, local string) error {
	stats, err := client.Sync(local)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d file(s), %d dir(s) to %s (%d skipped)\n",
		stats.Files, stats.Dirs, client.RemoteBase(), stats.Skipped)
	return nil
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [path]",
		Short: "Upload a local file or directory to the device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := "."
			if len(args) == 1 {
				local = args[0]
			}
			client, err := root.connectSSH(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			return syncTree(client, local)
		},
	}
}

func newExecCmd(root *rootOptions) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "exec -- <command>",
		Short: "Run a command on the device over SSH",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.connectSSH(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			command := strings.Join(args, " ")
			if noWait {
				stdout, _, err := client.RunCommand(command, false)
				if err != nil {
					return err
				}
				fmt.Println(stdout)
				return nil
			}

			stdout, stderr, status, err := client.RunWithStatus(command)
			fmt.Fprint(os.Stdout, stdout)
			fmt.Fprint(os.Stderr, stderr)
			if err != nil {
				return err
			}
			if status != 0 {
				return &exitStatusError{status: status}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return as soon as the command is sent")
	return cmd
}

func newStartCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Stop any running control server on the device and start a new one",
		Long: `Stop any running control server on the device and start a new one.

Runs deploy.server_command (default "./rpictld") in the remote deployment
directory; the binary has to be built for the device and synced there first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := root.connectSSH(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			return startServer(client)
		},
	}
}

func startServer(client *ssh.Client) error {
	stdout, _, err := client.StartRemoteServer()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", stdout, ssh.StartCommand(client.LaunchOptions()))
	return nil
}

// waitForControl czeka aż serwer sterujący zacznie przyjmować połączenia
func waitForControl(ctx context.Context, host string, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		err := scanner.Probe(ctx, host, port, time.Second)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("control server did not come up: %w", errors.Join(err, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func newDeployCmd(root *rootOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "deploy [path]",
		Short: "Sync the project tree, start the control server and wait for it",
		Long: `Sync the project tree, start the control server and wait for it.

The tree is uploaded to <remote home>/<deploy.remote_dir>, then deploy.server_command
(default "./rpictld") is run from that directory. The synced tree must therefore
contain an rpictld binary built for the device, for example:

  GOOS=linux GOARCH=arm64 go build -o rpictld ./cmd/rpictld

Set deploy.server_command in the config file to launch something else.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			local := "."
			if len(args) == 1 {
				local = args[0]
			}
			host, err := root.target()
			if err != nil {
				return err
			}

			client, err := root.connectSSH(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := syncTree(client, local); err != nil {
				return err
			}
			if err := startServer(client); err != nil {
				return err
			}
			if wait <= 0 {
				return nil
			}

			if err := waitForControl(ctx, host.IP, portOf(host.ControlAddr()), wait); err != nil {
				return err
			}
			fmt.Printf("Control server is up at %s\n", host.ControlAddr())
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "wait for the control port to open (0 disables)")
	return cmd
}
