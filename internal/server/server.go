// internal/server/server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"rpictl/internal/executor"
	"rpictl/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	DefaultListenAddr = "0.0.0.0:5000"

	// ReadBufferSize to maksymalny rozmiar jednego żądania.
	// Granica żądania = granica pojedynczego odczytu z gniazda.
	ReadBufferSize = 1024
)

// Handler zamienia żądanie na odpowiedź; odpowiedź nie może być pusta
type Handler interface {
	Execute(ctx context.Context, command string) string
}

type Config struct {
	ListenAddr string
	Handler    Handler
	Logger     *log.Logger
}

// Server obsługuje kanał sterujący: jedna gorutyna na połączenie
type Server struct {
	cfg      Config
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Handler == nil {
		cfg.Handler = executor.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

// Start otwiera gniazdo nasłuchujące i uruchamia pętlę accept.
// Błąd bind jest jedynym błędem krytycznym serwera.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = lis
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cfg.Logger.Info("listening", "addr", lis.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Błędy tymczasowe (np. brak deskryptorów) nie kończą pętli
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.cfg.Logger.Warn("accept failed", "err", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn: Reading -> Dispatching -> Writing -> Reading ... -> Closed
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	id := uuid.NewString()
	logger := s.cfg.Logger.With("conn", id, "peer", conn.RemoteAddr().String())
	logger.Info("accepted connection")
	defer logger.Info("closing connection")

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			request := buf[:n]
			response := s.dispatch(request, logger)
			if _, werr := io.WriteString(conn, response); werr != nil {
				logger.Error("write failed", "err", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				logger.Error("read failed", "err", err)
			}
			return
		}
	}
}

func (s *Server) dispatch(request []byte, logger *log.Logger) string {
	if !utf8.Valid(request) {
		logger.Warn("request is not valid UTF-8", "bytes", len(request))
		return executor.ErrorResponse(errors.New("request is not valid UTF-8"))
	}
	command := string(request)
	logger.Debug("received", "request", command)

	response := s.cfg.Handler.Execute(s.ctx, command)
	if response == "" {
		response = executor.NoOutputResponse
	}
	return response
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop zamyka gniazdo nasłuchujące i aktywne połączenia, po czym czeka na gorutyny
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blokuje do zakończenia pętli accept i wszystkich połączeń
func (s *Server) Wait() {
	s.wg.Wait()
}
