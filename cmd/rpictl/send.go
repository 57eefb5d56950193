package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"rpictl/internal/control"
	"rpictl/internal/logging"
	"rpictl/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one command to the control server and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := root.target()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := control.NewClient(host.ControlAddr(), root.logger)
			defer client.Close()

			resp, err := client.Exchange(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(strings.TrimRight(resp, "\n"))
			return nil
		},
	}
	withTimeout(cmd, &timeout, 30*time.Second)
	return cmd
}

func newConsoleCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive terminal console for the control server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stdoutIsTerminal() {
				return errors.New("console requires a terminal; use 'rpictl send' instead")
			}
			host, err := root.target()
			if err != nil {
				return err
			}

			// Logi do pliku, żeby nie psuły ekranu
			logFile, err := logging.OpenFile(root.logFilePath())
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger, err := logging.New(logFile, root.logLevel, "console")
			if err != nil {
				return err
			}

			client := control.NewClient(host.ControlAddr(), logger)
			p := tea.NewProgram(ui.NewModel(client), tea.WithAltScreen(), tea.WithOutput(os.Stdout))
			_, err = p.Run()
			client.Close()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("error running console: %w", err)
			}
			return nil
		},
	}
}
