// internal/ssh/state.go

package ssh

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SessionState reprezentuje stan sesji SSH
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// sessionState trzyma stan i ostatni błąd klienta
type sessionState struct {
	mu        sync.RWMutex
	state     SessionState
	lastError error
}

// setState ustawia stan sesji
func (s *sessionState) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// setError ustawia błąd sesji
func (s *sessionState) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.state = StateError
}

// recordError zapamiętuje błąd bez zmiany stanu (np. nieudany sync przy żywym połączeniu)
func (s *sessionState) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// GetState zwraca aktualny stan sesji
func (s *sessionState) GetState() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError zwraca ostatni błąd
func (s *sessionState) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// keepAliveLoop wysyła pakiety keepalive aż do zamknięcia stop
func keepAliveLoop(client *ssh.Client, interval time.Duration, stop <-chan struct{}, onFail func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				onFail(fmt.Errorf("keepalive failed: %w", err))
				return
			}
		case <-stop:
			return
		}
	}
}
