// internal/ssh/ssh_transfer.go

package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// remoteFS to minimalny zestaw operacji potrzebny do lustrzanej kopii katalogu
type remoteFS interface {
	// Mkdir tworzy katalog; istniejący katalog nie jest błędem
	Mkdir(path string) error
	// Upload nadpisuje zdalny plik zawartością lokalnego pliku
	Upload(localPath, remotePath string) error
	Close() error
}

// sftpFS przesyła pliki podkanałem SFTP
type sftpFS struct {
	client *sftp.Client
}

func newSFTPFS(sshClient *ssh.Client) (*sftpFS, error) {
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return &sftpFS{client: client}, nil
}

func (f *sftpFS) Mkdir(path string) error {
	err := f.client.Mkdir(path)
	if err == nil {
		return nil
	}
	// Ignorujemy "already exists"; inny błąd zwracamy
	if info, statErr := f.client.Stat(path); statErr == nil && info.IsDir() {
		return nil
	}
	return fmt.Errorf("failed to create remote directory %s: %w", path, err)
}

func (f *sftpFS) Upload(localPath, remotePath string) error {
	srcFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	dstFile, err := f.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	written, err := dstFile.ReadFrom(srcFile)
	if err != nil {
		dstFile.Close()
		return fmt.Errorf("error writing remote file %s: %w", remotePath, err)
	}
	if written != fileInfo.Size() {
		dstFile.Close()
		return fmt.Errorf("incomplete write: wrote %d bytes instead of %d", written, fileInfo.Size())
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %s: %w", remotePath, err)
	}

	// Zachowujemy bit wykonywalności (np. binarka serwera)
	if err := f.client.Chmod(remotePath, fileInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", remotePath, err)
	}
	return nil
}

func (f *sftpFS) Close() error {
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}

// scpFS to alternatywa dla hostów bez podsystemu sftp.
// Katalogi tworzy poleceniem mkdir -p.
type scpFS struct {
	client scp.Client
	run    func(command string) error
}

func newSCPFS(sshClient *ssh.Client, run func(command string) error) (*scpFS, error) {
	client, err := scp.NewClientBySSH(sshClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCP client: %w", err)
	}
	return &scpFS{client: client, run: run}, nil
}

func (f *scpFS) Mkdir(path string) error {
	if err := f.run("mkdir -p " + shellQuote(path)); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", path, err)
	}
	return nil
}

func (f *scpFS) Upload(localPath, remotePath string) error {
	srcFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	perms := fmt.Sprintf("%04o", fileInfo.Mode().Perm())
	if err := f.client.CopyFromFile(context.Background(), *srcFile, remotePath, perms); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to copy %s: %w", remotePath, err)
	}
	return nil
}

func (f *scpFS) Close() error {
	f.client.Close()
	return nil
}

// shellQuote zamyka tekst w apostrofach dla powłoki POSIX
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
