//go:build !windows

package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"rpictl/internal/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	srv := New(Config{ListenAddr: "127.0.0.1:0", Handler: handler})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		srv.Stop()
		srv.Wait()
	})
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip wysyła jedno żądanie i czyta jedną odpowiedź (tryb lock-step)
func roundTrip(t *testing.T, conn net.Conn, request string) string {
	t.Helper()
	_, err := conn.Write([]byte(request))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestServer_RoundTrip(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	assert.Contains(t, roundTrip(t, conn, "echo hello"), "hello")
	assert.Equal(t, executor.GreetingResponse, roundTrip(t, conn, "Hello"))
	assert.Equal(t, executor.HelpResponse, roundTrip(t, conn, "help"))
	assert.Equal(t, executor.NoOutputResponse, roundTrip(t, conn, "true"))
	assert.Equal(t, executor.FailureResponse, roundTrip(t, conn, "no-such-binary-rpictl"))
}

func TestServer_InvalidUTF8GetsResponse(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, string([]byte{0xff, 0xfe}))
	assert.Equal(t, "Error executing command: request is not valid UTF-8", resp)

	// Połączenie nadal działa
	assert.Contains(t, roundTrip(t, conn, "echo still-here"), "still-here")
}

func TestServer_ConcurrentConnectionsDoNotBlock(t *testing.T) {
	srv := startServer(t, nil)

	const clients = 4
	start := time.Now()
	var wg sync.WaitGroup
	responses := make([]string, clients)
	for i := 0; i < clients; i++ {
		conn := dial(t, srv)
		wg.Add(1)
		go func(i int, conn net.Conn) {
			defer wg.Done()
			if _, err := conn.Write([]byte(fmt.Sprintf("sleep 1; echo client-%d", i))); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			buf := make([]byte, 1024)
			n, _ := conn.Read(buf)
			responses[i] = string(buf[:n])
		}(i, conn)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i, resp := range responses {
		assert.Contains(t, resp, fmt.Sprintf("client-%d", i))
	}
	// Równolegle ~1s, sekwencyjnie byłoby ~4s
	assert.Less(t, elapsed, 3*time.Second)
}

func TestServer_ClosedPeerDoesNotStopAccepting(t *testing.T) {
	srv := startServer(t, nil)

	first := dial(t, srv)
	require.NoError(t, first.Close())

	second := dial(t, srv)
	assert.Contains(t, roundTrip(t, second, "echo second"), "second")
}

type blockingHandler struct {
	started chan struct{}
}

func (h *blockingHandler) Execute(ctx context.Context, command string) string {
	close(h.started)
	<-ctx.Done()
	return "cancelled"
}

func TestServer_StopClosesActiveConnections(t *testing.T) {
	h := &blockingHandler{started: make(chan struct{})}
	srv := New(Config{ListenAddr: "127.0.0.1:0", Handler: h})
	require.NoError(t, srv.Start(context.Background()))

	conn := dial(t, srv)
	_, err := conn.Write([]byte("anything"))
	require.NoError(t, err)
	<-h.started

	done := make(chan struct{})
	go func() {
		srv.Stop()
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = net.DialTimeout("tcp", srv.Addr().String(), 500*time.Millisecond)
	assert.Error(t, err)
}

func TestServer_StartFailsWhenPortTaken(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	srv := New(Config{ListenAddr: lis.Addr().String()})
	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to listen"))
}

func TestServer_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, srv.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}
