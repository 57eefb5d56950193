package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rpictl/internal/config"
	"rpictl/internal/crypto"
	"rpictl/internal/logging"
	"rpictl/internal/models"
	"rpictl/internal/ssh"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const passphraseEnv = "RPICTL_PASSPHRASE"

type rootOptions struct {
	configPath    string
	logLevel      string
	profile       string
	host          string
	user          string
	sshPort       int
	controlPort   int
	keyPath       string
	passwordStdin bool

	manager *config.Manager
	logger  *log.Logger
	cipher  *crypto.Cipher
}

func (r *rootOptions) prepare() error {
	logger, err := logging.New(os.Stderr, r.logLevel, "")
	if err != nil {
		return err
	}
	r.logger = logger

	r.manager = config.NewManager(r.configPath)
	if err := r.manager.Load(); err != nil {
		return err
	}
	return nil
}

// target składa docelowe urządzenie z profilu i flag; flagi mają pierwszeństwo
func (r *rootOptions) target() (models.Host, error) {
	var host models.Host
	if r.profile != "" {
		h, _, err := r.manager.FindProfile(r.profile)
		if err != nil {
			return host, err
		}
		host = h
	}
	if r.host != "" {
		host.IP = r.host
	}
	if r.user != "" {
		host.Login = r.user
	}
	if r.sshPort != 0 {
		host.Port = r.sshPort
	}
	if r.controlPort != 0 {
		host.ControlPort = r.controlPort
	}
	if r.keyPath != "" {
		host.KeyPath = r.keyPath
	}

	if host.IP == "" {
		return host, errors.New("no target device: use --profile or --host")
	}
	return host, nil
}

// getCipher tworzy szyfr haseł profili; sól jest generowana przy pierwszym użyciu
func (r *rootOptions) getCipher() (*crypto.Cipher, error) {
	if r.cipher != nil {
		return r.cipher, nil
	}

	hadSalt := r.manager.GetConfig().Salt != ""
	salt, err := r.manager.EnsureSalt(crypto.NewSalt)
	if err != nil {
		return nil, err
	}
	if !hadSalt {
		if err := r.manager.Save(); err != nil {
			return nil, err
		}
	}

	passphrase := os.Getenv(passphraseEnv)
	if passphrase == "" {
		passphrase, err = readSecret("Passphrase for stored passwords: ")
		if err != nil {
			return nil, err
		}
	}
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}

	r.cipher = crypto.NewCipher(passphrase, salt)
	return r.cipher, nil
}

// password zwraca hasło SSH: zapisane w profilu, ze stdin albo z promptu
func (r *rootOptions) password(host models.Host) (string, error) {
	if r.passwordStdin {
		return readLine(os.Stdin)
	}
	if host.HasPassword() {
		cipher, err := r.getCipher()
		if err != nil {
			return "", err
		}
		password, err := host.GetDecryptedPassword(cipher)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt stored password (wrong passphrase?): %w", err)
		}
		return password, nil
	}
	if host.KeyPath != "" {
		return "", nil
	}
	return readSecret(fmt.Sprintf("Password for %s@%s: ", host.Login, host.IP))
}

// sshClient buduje klienta SSH dla wskazanego urządzenia
func (r *rootOptions) sshClient() (*ssh.Client, error) {
	host, err := r.target()
	if err != nil {
		return nil, err
	}
	if host.Login == "" {
		return nil, errors.New("no login: use --user or save it in the profile")
	}
	password, err := r.password(host)
	if err != nil {
		return nil, err
	}

	deploy := r.manager.GetConfig().Deploy
	return ssh.NewClient(ssh.Options{
		Addr:           host.SSHAddr(),
		User:           host.Login,
		Password:       password,
		KeyPath:        host.KeyPath,
		HostKeyPolicy:  deploy.HostKeyPolicy,
		KnownHostsPath: r.manager.KnownHostsPath(),
		Timeout:        ssh.DefaultConnectTimeout,
		KeepAlive:      ssh.DefaultKeepAlive,
		Transfer:       deploy.Transfer,
		RemoteDir:      deploy.RemoteDir,
		Exclude:        deploy.Exclude,
		ServerCommand:  deploy.ServerCommand,
		KillPattern:    deploy.KillPattern,
		ServerLog:      deploy.ServerLog,
		Logger:         r.logger,
	}), nil
}

func (r *rootOptions) logFilePath() string {
	return filepath.Join(r.manager.GetConfigDir(), config.DefaultLogFileName)
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "rpictl",
		Short:         "Find, provision and control Raspberry Pi style devices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig, err := config.GetDefaultConfigPath()
	if err != nil {
		defaultConfig = config.DefaultConfigFileName
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfig, "path to rpictl config file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVarP(&opts.profile, "profile", "p", "", "saved device profile to use")
	flags.StringVar(&opts.host, "host", "", "device address (overrides profile)")
	flags.StringVarP(&opts.user, "user", "u", "", "SSH login (overrides profile)")
	flags.IntVar(&opts.sshPort, "ssh-port", 0, "SSH port (default 22)")
	flags.IntVar(&opts.controlPort, "control-port", 0, "control server port (default 5000)")
	flags.StringVarP(&opts.keyPath, "identity", "i", "", "private key file for SSH authentication")
	flags.BoolVar(&opts.passwordStdin, "password-stdin", false, "read the SSH password from stdin")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return opts.prepare()
	}

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newPingCmd(opts))
	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newExecCmd(opts))
	rootCmd.AddCommand(newStartCmd(opts))
	rootCmd.AddCommand(newDeployCmd(opts))
	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newConsoleCmd(opts))
	rootCmd.AddCommand(newProfileCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitStatusError przenosi kod wyjścia zdalnego polecenia do procesu rpictl
type exitStatusError struct {
	status int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.status)
}

func exitCode(err error) int {
	var statusErr *exitStatusError
	if errors.As(err, &statusErr) && statusErr.status > 0 && statusErr.status < 256 {
		return statusErr.status
	}
	return 1
}

// withTimeout jest skrótem dla flag czasu w podkomendach
func withTimeout(cmd *cobra.Command, target *time.Duration, def time.Duration) {
	cmd.Flags().DurationVar(target, "timeout", def, "operation timeout")
}
