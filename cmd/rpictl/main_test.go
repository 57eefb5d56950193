package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"rpictl/internal/models"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) *rootOptions {
	t.Helper()
	r := &rootOptions{configPath: filepath.Join(t.TempDir(), "config.yaml"), logLevel: "error"}
	require.NoError(t, r.prepare())
	return r
}

func TestTarget_FlagsOverrideProfile(t *testing.T) {
	r := newTestRoot(t)
	require.NoError(t, r.manager.SaveProfile(models.Host{Name: "lab", Login: "pi", IP: "10.0.0.7", ControlPort: 6000}))

	r.profile = "lab"
	host, err := r.target()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:22", host.SSHAddr())
	assert.Equal(t, "10.0.0.7:6000", host.ControlAddr())

	r.host = "10.0.0.9"
	r.user = "admin"
	r.sshPort = 2222
	host, err = r.target()
	require.NoError(t, err)
	assert.Equal(t, "admin", host.Login)
	assert.Equal(t, "10.0.0.9:2222", host.SSHAddr())
}

func TestTarget_Errors(t *testing.T) {
	r := newTestRoot(t)

	_, err := r.target()
	assert.ErrorContains(t, err, "no target device")

	r.profile = "missing"
	_, err = r.target()
	assert.ErrorContains(t, err, "not found")
}

func TestPassword_FromKeyFileNeedsNoPrompt(t *testing.T) {
	r := newTestRoot(t)
	password, err := r.password(models.Host{Login: "pi", IP: "10.0.0.7", KeyPath: "/tmp/id_ed25519"})
	require.NoError(t, err)
	assert.Empty(t, password)
}

func TestGetCipher_FromEnvironment(t *testing.T) {
	t.Setenv(passphraseEnv, "correct horse")
	r := newTestRoot(t)

	cipher, err := r.getCipher()
	require.NoError(t, err)
	assert.NotEmpty(t, r.manager.GetConfig().Salt)

	host := models.Host{Name: "lab", Login: "pi", IP: "10.0.0.7"}
	require.NoError(t, host.SetPassword("raspberry", cipher))

	password, err := r.password(host)
	require.NoError(t, err)
	assert.Equal(t, "raspberry", password)
}

func TestReadLine(t *testing.T) {
	line, err := readLine(strings.NewReader("s3cret\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", line)

	line, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", line)
}

func TestPortOf(t *testing.T) {
	assert.Equal(t, 5000, portOf("10.0.0.7:5000"))
	assert.Equal(t, 22, portOf("[fe80::1]:22"))
	assert.Equal(t, 0, portOf("garbage"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, exitCode(&exitStatusError{status: 3}))
	assert.Equal(t, 3, exitCode(fmt.Errorf("exec: %w", &exitStatusError{status: 3})))
	assert.Equal(t, 1, exitCode(&exitStatusError{status: -1}))
	assert.Equal(t, 1, exitCode(errors.New("connection refused")))
	assert.EqualError(t, &exitStatusError{status: 3}, "remote command exited with status 3")
}

func TestDeployHelpNamesServerBinary(t *testing.T) {
	root := &rootOptions{}
	for _, cmd := range []*cobra.Command{newDeployCmd(root), newStartCmd(root)} {
		assert.Contains(t, cmd.Long, "./rpictld", cmd.Name())
		assert.Contains(t, cmd.Long, "deploy.server_command", cmd.Name())
	}
	assert.Contains(t, newDeployCmd(root).Long, "GOOS=linux")
}
