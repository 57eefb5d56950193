package ssh

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"rpictl/internal/config"
	"rpictl/internal/logging"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// newMemSFTP zwraca sftpFS podłączony do serwera sftp w pamięci
func newMemSFTP(t *testing.T) *sftpFS {
	t.Helper()
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server := sftp.NewRequestServer(pipeConn{serverRead, serverWrite}, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	require.NoError(t, err)

	fs := &sftpFS{client: client}
	// Klient czeka na swoją gorutynę czytającą, więc najpierw zamykamy stronę serwera
	t.Cleanup(func() {
		server.Close()
		serverWrite.Close()
		fs.Close()
	})
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readRemote(t *testing.T, fs *sftpFS, path string) string {
	t.Helper()
	f, err := fs.client.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestExcluder(t *testing.T) {
	e := NewExcluder([]string{"venv", " __pycache__ ", ""})

	assert.True(t, e.Skip(".git"))
	assert.True(t, e.Skip(".env"))
	assert.True(t, e.Skip("venv"))
	assert.True(t, e.Skip("__pycache__"))
	assert.False(t, e.Skip("main.py"))
	assert.False(t, e.Skip("venv2"))
}

func TestMirrorTree_SFTP(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "main.py"), "print('hi')\n")
	writeFile(t, filepath.Join(local, "pkg", "util", "helpers.py"), "def f(): pass\n")
	writeFile(t, filepath.Join(local, ".git", "HEAD"), "ref: main\n")
	writeFile(t, filepath.Join(local, "__pycache__", "main.pyc"), "bytecode")
	writeFile(t, filepath.Join(local, ".env"), "SECRET=1")

	fs := newMemSFTP(t)
	stats, err := mirrorTree(fs, local, "/code", NewExcluder(config.DefaultExcludes), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Dirs)
	assert.Equal(t, 3, stats.Skipped)

	assert.Equal(t, "print('hi')\n", readRemote(t, fs, "/code/main.py"))
	assert.Equal(t, "def f(): pass\n", readRemote(t, fs, "/code/pkg/util/helpers.py"))

	for _, skipped := range []string{"/code/.git", "/code/__pycache__", "/code/.env"} {
		_, err := fs.client.Stat(skipped)
		assert.Error(t, err, skipped)
	}
}

func TestMirrorTree_SyncTwiceOverwrites(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "app", "config.txt"), "v1")

	fs := newMemSFTP(t)
	_, err := mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())
	require.NoError(t, err)

	writeFile(t, filepath.Join(local, "app", "config.txt"), "v2")
	_, err = mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, "v2", readRemote(t, fs, "/code/app/config.txt"))
}

func TestMirrorTree_SingleFile(t *testing.T) {
	local := filepath.Join(t.TempDir(), "server.py")
	writeFile(t, local, "serve()")

	fs := newMemSFTP(t)
	stats, err := mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, "serve()", readRemote(t, fs, "/code/server.py"))
}

func TestMirrorTree_MissingSource(t *testing.T) {
	fs := newMemSFTP(t)
	_, err := mirrorTree(fs, filepath.Join(t.TempDir(), "nope"), "/code", NewExcluder(nil), logging.Discard())
	assert.ErrorContains(t, err, "failed to stat")
}

// recordingFS zapisuje wywołania i może zawieść na wybranej ścieżce
type recordingFS struct {
	dirs     []string
	uploads  []string
	failOn   string
	closed   bool
	mkdirErr error
}

func (f *recordingFS) Mkdir(path string) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	f.dirs = append(f.dirs, path)
	return nil
}

func (f *recordingFS) Upload(localPath, remotePath string) error {
	if remotePath == f.failOn {
		return errors.New("disk full")
	}
	f.uploads = append(f.uploads, remotePath)
	return nil
}

func (f *recordingFS) Close() error {
	f.closed = true
	return nil
}

func TestMirrorTree_FirstErrorAborts(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "a.txt"), "a")
	writeFile(t, filepath.Join(local, "b.txt"), "b")
	writeFile(t, filepath.Join(local, "c.txt"), "c")

	fs := &recordingFS{failOn: "/code/b.txt"}
	stats, err := mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())

	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, []string{"/code/a.txt"}, fs.uploads)
}

func TestMirrorTree_DirectoriesBeforeContents(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "x", "y", "z.txt"), "z")

	fs := &recordingFS{}
	_, err := mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"/code", "/code/x", "/code/x/y"}, fs.dirs)
	assert.Equal(t, []string{"/code/x/y/z.txt"}, fs.uploads)
}

func TestMirrorTree_BaseMkdirFailure(t *testing.T) {
	local := t.TempDir()
	writeFile(t, filepath.Join(local, "a.txt"), "a")

	fs := &recordingFS{mkdirErr: errors.New("permission denied")}
	_, err := mirrorTree(fs, local, "/code", NewExcluder(nil), logging.Discard())
	assert.ErrorContains(t, err, "permission denied")
	assert.Empty(t, fs.uploads)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, `'/home/pi/my code'`, shellQuote("/home/pi/my code"))
}
