package utils

import (
	"path"
	"runtime"
	"strings"
)

// ToSFTPPath zamienia separatory ścieżki lokalnej na format zdalny
func ToSFTPPath(p string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

// RemoteRelPath normalizuje katalog względny względem $HOME na zdalnym hoście
func RemoteRelPath(p string) string {
	// Usuń potencjalne znaki "~" na początku ścieżki
	p = strings.TrimPrefix(p, "~")

	// Dla zdalnego systemu zawsze używaj forward slash
	p = strings.ReplaceAll(p, "\\", "/")

	// Usuń niepotrzebne separatory na początku i podwójne separatory
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}
