// internal/control/client.go

package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	apperr "rpictl/internal/error"
	"rpictl/internal/logging"

	"github.com/charmbracelet/log"
)

const (
	DefaultDialTimeout = 3 * time.Second
	ReadBufferSize     = 4096
)

var (
	ErrEmptyCommand = errors.New("command cannot be empty")
	ErrNotConnected = errors.New("not connected to control server")
)

// Client to klient kanału sterującego: jedno polecenie na zapis,
// każdy odebrany fragment trafia do OnMessage.
type Client struct {
	addr        string
	dialTimeout time.Duration
	logger      *log.Logger

	dialMu sync.Mutex // jedno wybieranie naraz

	mu           sync.Mutex
	conn         net.Conn
	done         chan struct{}
	pending      chan string
	onMessage    func(string)
	onDisconnect func(error)
}

func NewClient(addr string, logger *log.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
		logger:      logger.With("server", addr),
	}
}

// OnMessage ustawia callback dla odebranych odpowiedzi.
// Wołany z gorutyny czytającej.
func (c *Client) OnMessage(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnDisconnect ustawia callback wołany po zerwaniu połączenia.
// err == nil oznacza zamknięcie przez Close().
func (c *Client) OnDisconnect(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *Client) Addr() string {
	return c.addr
}

// Connected sprawdza czy połączenie jest aktywne
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect nawiązuje połączenie i uruchamia gorutynę czytającą.
// Po rozłączeniu można połączyć się ponownie. Równoległe wywołania
// współdzielą jedno połączenie.
func (c *Client) Connect(ctx context.Context) error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.logger.Error("Connection failed", "err", err)
		return apperr.New(apperr.ConnectionError, fmt.Sprintf("failed to connect to %s", c.addr), err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	c.logger.Info("connected to control server")
	go c.readLoop(conn, done)
	return nil
}

func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.dispatch(strings.ToValidUTF8(string(buf[:n]), "�"))
		}
		if err != nil {
			c.disconnected(conn, err)
			return
		}
	}
}

// dispatch oddaje odpowiedź oczekującemu Exchange albo do OnMessage
func (c *Client) dispatch(text string) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	fn := c.onMessage
	c.mu.Unlock()

	if pending != nil {
		pending <- text
		return
	}
	if fn != nil {
		fn(text)
	}
}

func (c *Client) disconnected(conn net.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.pending = nil
	fn := c.onDisconnect
	c.mu.Unlock()

	conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
		c.logger.Debug("connection closed")
	} else {
		c.logger.Warn("disconnected from control server", "err", err)
	}
	if fn != nil {
		fn(err)
	}
}

// Send wysyła jedno polecenie; pusty tekst jest odrzucany bez wysyłania
func (c *Client) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.New(apperr.ValidationError, "invalid command", ErrEmptyCommand)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return apperr.New(apperr.ConnectionError, "send failed", ErrNotConnected)
	}

	if _, err := conn.Write([]byte(text)); err != nil {
		c.logger.Error("Failed to send command", "err", err)
		return apperr.New(apperr.ConnectionError, "send failed", err)
	}
	c.logger.Debug("sent command", "command", text)
	return nil
}

// Exchange wysyła polecenie i czeka na jedną odpowiedź (tryb lock-step).
// Łączy się, jeśli połączenie nie jest aktywne.
func (c *Client) Exchange(ctx context.Context, text string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	reply := make(chan string, 1)
	c.mu.Lock()
	c.pending = reply
	done := c.done
	c.mu.Unlock()

	if err := c.Send(text); err != nil {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return "", err
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-done:
		// Odpowiedź mogła dotrzeć tuż przed rozłączeniem
		select {
		case resp := <-reply:
			return resp, nil
		default:
		}
		return "", apperr.New(apperr.ConnectionError, "connection closed before response", ErrNotConnected)
	case <-ctx.Done():
		c.mu.Lock()
		if c.pending == reply {
			c.pending = nil
		}
		c.mu.Unlock()
		return "", ctx.Err()
	}
}

// Close zamyka połączenie i czeka na zakończenie gorutyny czytającej
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}
