// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"rpictl/internal/models"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFileName = "config.yaml"
	DefaultConfigDir      = ".config/rpictl"
	DefaultFilePerms      = 0600
	DefaultLogFileName    = "rpictl.log"
	KnownHostsFileName    = "known_hosts"
)

// Wartości domyślne zdalnego wdrożenia
const (
	DefaultRemoteDir     = "rpictl_code"
	// Binarka rpictld zbudowana dla urządzenia musi być w synchronizowanym drzewie
	DefaultServerCommand = "./rpictld"
	DefaultKillPattern   = "rpictld"
	DefaultServerLog     = "server.log"
	DefaultScanPort      = 22
	DefaultScanTimeout   = 500 * time.Millisecond
	DefaultScanWorkers   = 50
)

// Polityki weryfikacji klucza hosta
const (
	HostKeyInsecure  = "insecure"
	HostKeyAcceptNew = "accept-new"
	HostKeyStrict    = "strict"
)

// Metody przesyłania plików
const (
	TransferSFTP = "sftp"
	TransferSCP  = "scp"
)

// DefaultExcludes to katalogi pomijane przy synchronizacji oprócz plików ukrytych
var DefaultExcludes = []string{"__pycache__", "venv", "node_modules"}

type ScanConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
}

type DeployConfig struct {
	RemoteDir     string   `yaml:"remote_dir"`
	ServerCommand string   `yaml:"server_command"`
	KillPattern   string   `yaml:"kill_pattern"`
	ServerLog     string   `yaml:"server_log"`
	Exclude       []string `yaml:"exclude"`
	Transfer      string   `yaml:"transfer"`
	HostKeyPolicy string   `yaml:"host_key_policy"`
}

type Config struct {
	Salt     string        `yaml:"salt,omitempty"`
	Scan     ScanConfig    `yaml:"scan"`
	Deploy   DeployConfig  `yaml:"deploy"`
	Profiles []models.Host `yaml:"profiles"`
}

// Default zwraca konfigurację z wartościami domyślnymi
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Port:    DefaultScanPort,
			Timeout: DefaultScanTimeout,
			Workers: DefaultScanWorkers,
		},
		Deploy: DeployConfig{
			RemoteDir:     DefaultRemoteDir,
			ServerCommand: DefaultServerCommand,
			KillPattern:   DefaultKillPattern,
			ServerLog:     DefaultServerLog,
			Exclude:       append([]string(nil), DefaultExcludes...),
			Transfer:      TransferSFTP,
			HostKeyPolicy: HostKeyInsecure,
		},
		Profiles: make([]models.Host, 0),
	}
}

// applyDefaults uzupełnia brakujące pola wczytanej konfiguracji
func (c *Config) applyDefaults() {
	def := Default()
	if c.Scan.Port == 0 {
		c.Scan.Port = def.Scan.Port
	}
	if c.Scan.Timeout <= 0 {
		c.Scan.Timeout = def.Scan.Timeout
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = def.Scan.Workers
	}
	if c.Deploy.RemoteDir == "" {
		c.Deploy.RemoteDir = def.Deploy.RemoteDir
	}
	if c.Deploy.ServerCommand == "" {
		c.Deploy.ServerCommand = def.Deploy.ServerCommand
	}
	if c.Deploy.KillPattern == "" {
		c.Deploy.KillPattern = def.Deploy.KillPattern
	}
	if c.Deploy.ServerLog == "" {
		c.Deploy.ServerLog = def.Deploy.ServerLog
	}
	// nil oznacza brak klucza w pliku, pusta lista jest świadomym wyborem
	if c.Deploy.Exclude == nil {
		c.Deploy.Exclude = def.Deploy.Exclude
	}
	if c.Deploy.Transfer == "" {
		c.Deploy.Transfer = def.Deploy.Transfer
	}
	if c.Deploy.HostKeyPolicy == "" {
		c.Deploy.HostKeyPolicy = def.Deploy.HostKeyPolicy
	}
	if c.Profiles == nil {
		c.Profiles = make([]models.Host, 0)
	}
}

// Validate sprawdza wartości wyliczeniowe
func (c *Config) Validate() error {
	switch c.Deploy.Transfer {
	case TransferSFTP, TransferSCP:
	default:
		return fmt.Errorf("unknown transfer method %q (expected %s|%s)", c.Deploy.Transfer, TransferSFTP, TransferSCP)
	}
	switch c.Deploy.HostKeyPolicy {
	case HostKeyInsecure, HostKeyAcceptNew, HostKeyStrict:
	default:
		return fmt.Errorf("unknown host key policy %q (expected %s|%s|%s)",
			c.Deploy.HostKeyPolicy, HostKeyInsecure, HostKeyAcceptNew, HostKeyStrict)
	}
	if strings.ContainsAny(c.Deploy.RemoteDir, "/\\") {
		return fmt.Errorf("remote_dir must be a single directory name, got %q", c.Deploy.RemoteDir)
	}
	return nil
}

type Manager struct {
	configPath string
	config     *Config
}

// NewManager tworzy nowego menedżera konfiguracji
func NewManager(configPath string) *Manager {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		} else {
			// Fallback do bieżącego katalogu jeśli nie można uzyskać ścieżki domowej
			configPath = DefaultConfigFileName
		}
	}

	return &Manager{
		configPath: configPath,
		config:     Default(),
	}
}

// Load wczytuje konfigurację z pliku
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Jeśli plik nie istnieje, zapisujemy konfigurację domyślną
			m.config = Default()
			return m.Save()
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config file %s: %w", m.configPath, err)
	}

	m.config = cfg
	return nil
}

// Save zapisuje konfigurację do pliku
func (m *Manager) Save() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, DefaultFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir zwraca katalog, w którym leżą plik konfiguracji, known_hosts i logi
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}

// KnownHostsPath zwraca ścieżkę do pliku known_hosts aplikacji
func (m *Manager) KnownHostsPath() string {
	return filepath.Join(m.GetConfigDir(), KnownHostsFileName)
}

// EnsureSalt generuje sól dla szyfrowania haseł przy pierwszym użyciu
func (m *Manager) EnsureSalt(newSalt func() (string, error)) (string, error) {
	if m.config.Salt != "" {
		return m.config.Salt, nil
	}
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	m.config.Salt = salt
	return salt, nil
}

// GetProfiles zwraca listę wszystkich profili
func (m *Manager) GetProfiles() []models.Host {
	return m.config.Profiles
}

// SaveProfile dodaje profil lub nadpisuje istniejący o tej samej nazwie
func (m *Manager) SaveProfile(host models.Host) error {
	if host.Name == "" {
		return errors.New("profile name cannot be empty")
	}
	if err := host.Validate(); err != nil {
		return err
	}
	for i, h := range m.config.Profiles {
		if h.Name == host.Name {
			m.config.Profiles[i] = host
			return nil
		}
	}
	m.config.Profiles = append(m.config.Profiles, host)
	return nil
}

// DeleteProfile usuwa profil
func (m *Manager) DeleteProfile(name string) error {
	_, index, err := m.FindProfile(name)
	if err != nil {
		return err
	}
	m.config.Profiles = append(m.config.Profiles[:index], m.config.Profiles[index+1:]...)
	return nil
}

// FindProfile szuka profilu po nazwie
func (m *Manager) FindProfile(name string) (models.Host, int, error) {
	for i, host := range m.config.Profiles {
		if host.Name == name {
			return host, i, nil
		}
	}
	return models.Host{}, -1, fmt.Errorf("profile %q not found", name)
}

func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}

	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFileName), nil
}
