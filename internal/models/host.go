// internal/models/host.go

package models

import (
	"errors"
	"net"
	"strconv"
)

const (
	DefaultSSHPort     = 22
	DefaultControlPort = 5000
)

// Host to zapisany profil urządzenia (np. Raspberry Pi)
type Host struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Login       string `yaml:"login"`
	IP          string `yaml:"ip"`
	Port        int    `yaml:"port,omitempty"`
	ControlPort int    `yaml:"control_port,omitempty"`
	Password    string `yaml:"password,omitempty"` // zaszyfrowane hasło
	KeyPath     string `yaml:"key_path,omitempty"`
}

// Validate sprawdza poprawność danych hosta
func (h *Host) Validate() error {
	if h.IP == "" {
		return errors.New("host address cannot be empty")
	}
	if h.Login == "" {
		return errors.New("login cannot be empty")
	}
	if h.Port < 0 || h.Port > 65535 {
		return errors.New("invalid ssh port")
	}
	if h.ControlPort < 0 || h.ControlPort > 65535 {
		return errors.New("invalid control port")
	}
	return nil
}

// SSHAddr zwraca adres host:port dla połączenia SSH
func (h *Host) SSHAddr() string {
	port := h.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(h.IP, strconv.Itoa(port))
}

// ControlAddr zwraca adres serwera sterującego
func (h *Host) ControlAddr() string {
	port := h.ControlPort
	if port == 0 {
		port = DefaultControlPort
	}
	return net.JoinHostPort(h.IP, strconv.Itoa(port))
}
