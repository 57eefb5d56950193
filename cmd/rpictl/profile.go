package main

import (
	"errors"
	"fmt"
	"os"

	"rpictl/internal/ui"

	"github.com/spf13/cobra"
)

func newProfileCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved device profiles",
	}
	cmd.AddCommand(newProfileSaveCmd(root))
	cmd.AddCommand(newProfileListCmd(root))
	cmd.AddCommand(newProfileRemoveCmd(root))
	return cmd
}

func newProfileSaveCmd(root *rootOptions) *cobra.Command {
	var (
		description  string
		savePassword bool
	)
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the device given by --host/--user (and optionally its password)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// --profile pozwala nadpisać istniejący profil nowymi flagami
			if root.profile == "" {
				if _, _, err := root.manager.FindProfile(args[0]); err == nil {
					root.profile = args[0]
				}
			}
			host, err := root.target()
			if err != nil {
				return err
			}
			host.Name = args[0]
			if description != "" {
				host.Description = description
			}

			if savePassword {
				var password string
				if root.passwordStdin {
					password, err = readLine(os.Stdin)
				} else {
					password, err = readSecret(fmt.Sprintf("Password for %s@%s: ", host.Login, host.IP))
				}
				if err != nil {
					return err
				}
				if password == "" {
					return errors.New("password cannot be empty")
				}
				cipher, err := root.getCipher()
				if err != nil {
					return err
				}
				if err := host.SetPassword(password, cipher); err != nil {
					return err
				}
			}

			if err := root.manager.SaveProfile(host); err != nil {
				return err
			}
			if err := root.manager.Save(); err != nil {
				return err
			}
			fmt.Printf("Profile %q saved\n", host.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().BoolVar(&savePassword, "save-password", false, "prompt for the SSH password and store it encrypted")
	return cmd
}

func newProfileListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved device profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := root.manager.GetProfiles()
			if len(profiles) == 0 {
				fmt.Println("No profiles saved")
				return nil
			}
			if stdoutIsTerminal() {
				fmt.Println(ui.ProfileTable(profiles))
				return nil
			}
			for _, h := range profiles {
				fmt.Printf("%s\t%s@%s\t%s\n", h.Name, h.Login, h.SSHAddr(), h.ControlAddr())
			}
			return nil
		},
	}
}

func newProfileRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a saved device profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.manager.DeleteProfile(args[0]); err != nil {
				return err
			}
			if err := root.manager.Save(); err != nil {
				return err
			}
			fmt.Printf("Profile %q removed\n", args[0])
			return nil
		},
	}
}
