// internal/ssh/ssh_client.go

package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"rpictl/internal/config"
	apperr "rpictl/internal/error"
	"rpictl/internal/logging"
	"rpictl/internal/utils"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultKeepAlive      = 30 * time.Second
)

// Options opisuje sesję SSH i zdalne wdrożenie
type Options struct {
	Addr     string // host:port
	User     string
	Password string
	KeyPath  string

	HostKeyPolicy  string
	KnownHostsPath string
	Timeout        time.Duration
	KeepAlive      time.Duration

	Transfer      string
	RemoteDir     string
	Exclude       []string
	ServerCommand string
	KillPattern   string
	ServerLog     string

	Logger *log.Logger
}

// Client łączy się z urządzeniem, synchronizuje kod i uruchamia serwer.
// Instancja nie jest bezpieczna do użycia z wielu gorutyn.
type Client struct {
	sessionState

	opts     Options
	logger   *log.Logger
	client   *ssh.Client
	transfer remoteFS
	stopChan chan struct{}
	home     string
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	if opts.Transfer == "" {
		opts.Transfer = config.TransferSFTP
	}
	if opts.RemoteDir == "" {
		opts.RemoteDir = config.DefaultRemoteDir
	}
	if opts.Exclude == nil {
		opts.Exclude = config.DefaultExcludes
	}
	if opts.ServerCommand == "" {
		opts.ServerCommand = config.DefaultServerCommand
	}
	if opts.KillPattern == "" {
		opts.KillPattern = config.DefaultKillPattern
	}
	if opts.ServerLog == "" {
		opts.ServerLog = config.DefaultServerLog
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		opts:   opts,
		logger: logger.With("host", opts.Addr),
	}
}

// authMethods buduje listę metod uwierzytelniania: klucz, hasło, keyboard-interactive
func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.opts.KeyPath != "" {
		key, err := os.ReadFile(c.opts.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.opts.Password != "" {
		password := c.opts.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, errors.New("no password or key provided")
	}
	return methods, nil
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	auth, err := c.authMethods()
	if err != nil {
		return nil, apperr.New(apperr.ValidationError, "invalid credentials", err)
	}

	hostKeyCallback, err := HostKeyCallback(c.opts.HostKeyPolicy, c.opts.KnownHostsPath)
	if err != nil {
		return nil, apperr.New(apperr.ConfigError, "failed to create hostKeyCallback", err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.opts.Timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", c.opts.Addr)
	if err != nil {
		return nil, apperr.New(apperr.ConnectionError, "failed to dial", err)
	}

	// Handshake i uwierzytelnianie też mieszczą się w limicie czasu
	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.opts.Addr, sshConfig)
	if err != nil {
		conn.Close()
		var hkErr *HostKeyVerificationRequired
		switch {
		case errors.As(err, &hkErr):
			return nil, apperr.New(apperr.AuthError, "host key verification failed", err)
		case strings.Contains(err.Error(), "unable to authenticate"):
			return nil, apperr.New(apperr.AuthError, "authentication failed", err)
		default:
			return nil, apperr.New(apperr.ConnectionError, "ssh handshake failed", err)
		}
	}
	conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Connect zwraca false przy każdym błędzie; przyczyna trafia do logu i LastError()
// Sesja oznaczona błędem (np. po nieudanym keepalive) jest zamykana i wybierana ponownie.
func (c *Client) Connect(ctx context.Context) bool {
	if c.IsConnected() {
		return true
	}
	if c.client != nil {
		c.logger.Info("SSH session is broken, reconnecting", "err", c.LastError())
		c.Close()
	}
	c.setState(StateConnecting)

	client, err := c.dial(ctx)
	if err != nil {
		c.setError(err)
		c.logger.Error("SSH connection failed", "err", err)
		return false
	}

	c.client = client
	c.stopChan = make(chan struct{})
	c.setState(StateConnected)
	c.logger.Info("SSH connected", "user", c.opts.User)

	if c.opts.KeepAlive > 0 {
		go keepAliveLoop(client, c.opts.KeepAlive, c.stopChan, func(err error) {
			c.setError(err)
			c.logger.Warn("SSH keepalive failed", "err", err)
		})
	}
	return true
}

// IsConnected sprawdza czy sesja jest aktywna
func (c *Client) IsConnected() bool {
	return c.client != nil && c.GetState() == StateConnected
}

// RunCommand wykonuje polecenie w nowej sesji SSH.
// Przy wait=false wraca od razu po wysłaniu polecenia.
// Niezerowy kod wyjścia nie jest błędem: zwracamy stdout i stderr.
func (c *Client) RunCommand(command string, wait bool) (string, string, error) {
	if wait {
		stdout, stderr, _, err := c.RunWithStatus(command)
		return stdout, stderr, err
	}
	if c.client == nil {
		return "", "", apperr.New(apperr.ConnectionError, "not connected", nil)
	}

	session, err := c.client.NewSession()
	if err != nil {
		c.logger.Error("Command execution failed", "err", err)
		return "", err.Error(), apperr.New(apperr.ConnectionError, "failed to create session", err)
	}
	if err := session.Start(command); err != nil {
		session.Close()
		c.logger.Error("Command execution failed", "command", command, "err", err)
		return "", err.Error(), apperr.New(apperr.CommandError, "failed to start command", err)
	}
	// Sesję sprzątamy w tle, gdy zdalna powłoka się zakończy
	go func() {
		session.Wait()
		session.Close()
	}()
	return CommandSentResponse, "", nil
}

// RunWithStatus czeka na zakończenie polecenia i zwraca też jego kod wyjścia.
// Brak kodu wyjścia (np. zabity sygnałem) daje -1.
func (c *Client) RunWithStatus(command string) (string, string, int, error) {
	if c.client == nil {
		return "", "", -1, apperr.New(apperr.ConnectionError, "not connected", nil)
	}

	session, err := c.client.NewSession()
	if err != nil {
		c.logger.Error("Command execution failed", "err", err)
		return "", err.Error(), -1, apperr.New(apperr.ConnectionError, "failed to create session", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	status := 0
	err = session.Run(command)
	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status = exitErr.ExitStatus()
		c.logger.Debug("remote command exited", "command", command, "status", status)
	case errors.As(err, &missingErr):
		status = -1
		c.logger.Debug("remote command finished without exit status", "command", command)
	default:
		c.logger.Error("Command execution failed", "command", command, "err", err)
		return decode(stdout.Bytes()), err.Error(), -1, apperr.New(apperr.CommandError, "command failed", err)
	}

	return decode(stdout.Bytes()), decode(stderr.Bytes()), status, nil
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// runChecked jest jak RunCommand, ale niezerowy kod wyjścia jest błędem
func (c *Client) runChecked(command string) error {
	if c.client == nil {
		return apperr.New(apperr.ConnectionError, "not connected", nil)
	}
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	if out, err := session.CombinedOutput(command); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// RemoteHome zwraca katalog domowy użytkownika na zdalnym hoście
func (c *Client) RemoteHome() string {
	if c.home != "" {
		return c.home
	}
	stdout, _, err := c.RunCommand("echo $HOME", true)
	home := strings.TrimSpace(stdout)
	if err != nil || !strings.HasPrefix(home, "/") {
		home = path.Join("/home", c.opts.User)
	}
	c.home = home
	return home
}

// RemoteBase zwraca katalog wdrożenia: <home>/<remote_dir>
func (c *Client) RemoteBase() string {
	return path.Join(c.RemoteHome(), utils.RemoteRelPath(c.opts.RemoteDir))
}

func (c *Client) openTransfer() (remoteFS, error) {
	if c.transfer != nil {
		return c.transfer, nil
	}
	if c.client == nil {
		return nil, apperr.New(apperr.ConnectionError, "not connected", nil)
	}

	var (
		fs  remoteFS
		err error
	)
	switch c.opts.Transfer {
	case config.TransferSCP:
		fs, err = newSCPFS(c.client, c.runChecked)
	default:
		fs, err = newSFTPFS(c.client)
	}
	if err != nil {
		return nil, apperr.New(apperr.TransferError, "failed to open transfer channel", err)
	}
	c.transfer = fs
	return fs, nil
}

// SyncTree kopiuje lokalny plik lub katalog do RemoteBase().
// Zwraca false przy pierwszym błędzie; częściowo przesłane pliki zostają.
func (c *Client) SyncTree(localRoot string) bool {
	_, err := c.Sync(localRoot)
	return err == nil
}

// Sync robi to samo co SyncTree, ale zwraca statystyki i błąd
func (c *Client) Sync(localRoot string) (SyncStats, error) {
	fs, err := c.openTransfer()
	if err != nil {
		c.recordError(err)
		c.logger.Error("Sync failed", "err", err)
		return SyncStats{}, err
	}

	base := c.RemoteBase()
	c.logger.Info("syncing", "local", localRoot, "remote", base, "transfer", c.opts.Transfer)

	stats, err := mirrorTree(fs, localRoot, base, NewExcluder(c.opts.Exclude), c.logger)
	if err != nil {
		err = apperr.New(apperr.TransferError, "sync aborted", err)
		c.recordError(err)
		c.logger.Error("Sync failed", "err", err, "uploaded", stats.Files)
		return stats, err
	}

	c.logger.Info("sync finished", "files", stats.Files, "dirs", stats.Dirs, "skipped", stats.Skipped)
	return stats, nil
}

// LaunchOptions zwraca parametry uruchomienia serwera dla tej sesji
func (c *Client) LaunchOptions() LaunchOptions {
	return LaunchOptions{
		RemoteBase:    c.RemoteBase(),
		ServerCommand: c.opts.ServerCommand,
		KillPattern:   c.opts.KillPattern,
		LogFile:       c.opts.ServerLog,
	}
}

// StartRemoteServer zabija poprzednią instancję serwera i uruchamia nową w tle
func (c *Client) StartRemoteServer() (string, string, error) {
	return StartServer(c, c.LaunchOptions(), c.logger)
}

// Close zamyka kanał transferu i połączenie SSH; można wołać wielokrotnie
func (c *Client) Close() error {
	if c.stopChan != nil {
		close(c.stopChan)
		c.stopChan = nil
	}

	var errs []error
	if c.transfer != nil {
		if err := c.transfer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transfer close error: %w", err))
		}
		c.transfer = nil
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("client close error: %w", err))
		}
		c.client = nil
	}
	c.home = ""
	c.setState(StateDisconnected)

	return errors.Join(errs...)
}
