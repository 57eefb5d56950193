// internal/logging/logging.go

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New tworzy logger z poziomem podanym tekstowo (debug|info|warn|error)
func New(w io.Writer, level string, prefix string) (*log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return logger, nil
}

// ParseLevel akceptuje również pusty ciąg i "warning"
func ParseLevel(level string) (log.Level, error) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "", "info":
		return log.InfoLevel, nil
	case "warning":
		return log.WarnLevel, nil
	default:
		lvl, err := log.ParseLevel(l)
		if err != nil {
			return log.InfoLevel, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
		}
		return lvl, nil
	}
}

// OpenFile otwiera plik logów w trybie dopisywania.
// Używane przez konsolę TUI, żeby logi nie psuły ekranu.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Discard zwraca logger, który nic nie zapisuje (dla testów i trybu cichego)
func Discard() *log.Logger {
	return log.New(io.Discard)
}
