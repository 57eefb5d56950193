// internal/ssh/sync.go

package ssh

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rpictl/internal/utils"

	"github.com/charmbracelet/log"
)

// Excluder decyduje, które wpisy drzewa pomijamy przy synchronizacji
type Excluder struct {
	names map[string]struct{}
}

// NewExcluder pomija pliki ukryte oraz wpisy o podanych nazwach
func NewExcluder(names []string) *Excluder {
	e := &Excluder{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			e.names[n] = struct{}{}
		}
	}
	return e
}

// Skip sprawdza nazwę (nie ścieżkę) wpisu
func (e *Excluder) Skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := e.names[name]
	return ok
}

// SyncStats podsumowuje przebieg synchronizacji
type SyncStats struct {
	Dirs    int
	Files   int
	Skipped int
}

// mirrorTree kopiuje localPath do katalogu remoteBase.
// Plik trafia do remoteBase/<nazwa>, katalog jest odwzorowywany rekurencyjnie
// (najpierw katalog, potem jego zawartość). Pierwszy błąd przerywa pracę,
// a już przesłane pliki zostają na miejscu.
func mirrorTree(fs remoteFS, localPath, remoteBase string, excl *Excluder, logger *log.Logger) (SyncStats, error) {
	var stats SyncStats

	if err := fs.Mkdir(remoteBase); err != nil {
		return stats, err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return stats, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	if !info.IsDir() {
		remoteFile := path.Join(remoteBase, filepath.Base(localPath))
		if err := fs.Upload(localPath, remoteFile); err != nil {
			return stats, err
		}
		stats.Files++
		logger.Debug("uploaded", "file", remoteFile)
		return stats, nil
	}

	err = filepath.WalkDir(localPath, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == localPath {
			return nil
		}

		if excl.Skip(d.Name()) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		remotePath := path.Join(remoteBase, utils.ToSFTPPath(rel))

		switch {
		case d.IsDir():
			if err := fs.Mkdir(remotePath); err != nil {
				return err
			}
			stats.Dirs++
		case d.Type().IsRegular() || isSymlinkToFile(p, d):
			if err := fs.Upload(p, remotePath); err != nil {
				return err
			}
			stats.Files++
			logger.Debug("uploaded", "file", remotePath)
		default:
			// Gniazda, urządzenia i dowiązania do katalogów pomijamy
			stats.Skipped++
		}
		return nil
	})
	return stats, err
}

// isSymlinkToFile: dowiązania do plików kopiujemy jako zwykłe pliki,
// dowiązań do katalogów nie odwiedzamy
func isSymlinkToFile(p string, d os.DirEntry) bool {
	if d.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
