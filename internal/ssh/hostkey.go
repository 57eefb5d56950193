// internal/ssh/hostkey.go

package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"rpictl/internal/config"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyVerificationRequired oznacza, że klucz hosta nie jest jeszcze znany
type HostKeyVerificationRequired struct {
	Host        string
	Fingerprint string
}

func (e *HostKeyVerificationRequired) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("host key verification required for %s (%s)", e.Host, e.Fingerprint)
	}
	return fmt.Sprintf("host key verification required for %s", e.Host)
}

// HostKeyCallback buduje callback dla wybranej polityki:
//   - insecure: każdy klucz akceptowany i nigdzie nie zapisywany
//   - accept-new: nieznany klucz dopisywany do known_hosts, zmieniony odrzucany
//   - strict: tylko klucze już obecne w known_hosts
func HostKeyCallback(policy, knownHostsPath string) (ssh.HostKeyCallback, error) {
	switch policy {
	case config.HostKeyInsecure, "":
		return ssh.InsecureIgnoreHostKey(), nil
	case config.HostKeyStrict:
		return strictCallback(knownHostsPath), nil
	case config.HostKeyAcceptNew:
		return acceptNewCallback(knownHostsPath)
	default:
		return nil, fmt.Errorf("unknown host key policy %q", policy)
	}
}

func strictCallback(knownHostsPath string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
			return &HostKeyVerificationRequired{Host: hostname, Fingerprint: ssh.FingerprintSHA256(key)}
		}
		cb, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("failed to read known_hosts: %w", err)
		}
		err = cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return &HostKeyVerificationRequired{Host: hostname, Fingerprint: ssh.FingerprintSHA256(key)}
		}
		return err
	}
}

// acceptNewCallback implementuje trust-on-first-use
func acceptNewCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory for known_hosts: %w", err)
	}

	var mu sync.Mutex
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		mu.Lock()
		defer mu.Unlock()

		// Plik tworzymy pusty, żeby knownhosts.New miało co wczytać
		f, err := os.OpenFile(knownHostsPath, os.O_CREATE|os.O_RDONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open known_hosts: %w", err)
		}
		f.Close()

		cb, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("failed to read known_hosts: %w", err)
		}

		err = cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			// nil (klucz znany) albo niezgodność klucza
			return err
		}

		return appendKnownHost(knownHostsPath, knownHostAddresses(hostname, remote), key)
	}, nil
}

// knownHostAddresses zwraca nazwę hosta i adres IP; knownhosts sprawdza oba
func knownHostAddresses(hostname string, remote net.Addr) []string {
	addrs := []string{knownhosts.Normalize(hostname)}
	if remote != nil {
		if ip := knownhosts.Normalize(remote.String()); ip != addrs[0] {
			addrs = append(addrs, ip)
		}
	}
	return addrs
}

// appendKnownHost dopisuje klucz hosta do pliku known_hosts
func appendKnownHost(knownHostsPath string, addresses []string, key ssh.PublicKey) error {
	line := knownhosts.Line(addresses, key)

	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file %s: %w", knownHostsPath, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write known_hosts file %s: %w", knownHostsPath, err)
	}
	return nil
}
