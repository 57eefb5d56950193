package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mobyterm "github.com/moby/term"
	"golang.org/x/term"
)

// readSecret czyta hasło z terminala bez echa
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal: use --password-stdin, " + passphraseEnv + " or an identity file")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

// readLine czyta jedną linię (np. hasło przekazane potokiem)
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// stdoutIsTerminal decyduje między tabelą a zwykłym tekstem
func stdoutIsTerminal() bool {
	_, isTerminal := mobyterm.GetFdInfo(os.Stdout)
	return isTerminal
}
