// internal/ssh/launch.go

package ssh

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// CommandSentResponse zwracane przez RunCommand(..., false)
const CommandSentResponse = "Command sent"

// CommandRunner wykonuje polecenie na zdalnym hoście
type CommandRunner interface {
	RunCommand(command string, wait bool) (stdout, stderr string, err error)
}

// LaunchOptions opisuje jak zatrzymać i uruchomić zdalny serwer sterujący
type LaunchOptions struct {
	RemoteBase    string
	ServerCommand string
	KillPattern   string
	LogFile       string
}

// KillCommand zabija procesy pasujące do wzorca; brak procesu daje niezerowy kod wyjścia
func KillCommand(pattern string) string {
	return "pkill -f " + shellQuote(pattern)
}

// StartCommand uruchamia serwer w tle, odłączony od sesji SSH
func StartCommand(opts LaunchOptions) string {
	return fmt.Sprintf("cd %s && nohup %s > %s 2>&1 &",
		shellQuote(opts.RemoteBase), opts.ServerCommand, shellQuote(opts.LogFile))
}

// StartServer: najpierw kill (wynik ignorowany), potem start bez czekania na wyjście.
// Wzajemne wykluczanie opiera się wyłącznie na dopasowaniu wzorca procesu.
func StartServer(runner CommandRunner, opts LaunchOptions, logger *log.Logger) (string, string, error) {
	kill := KillCommand(opts.KillPattern)
	if _, stderr, err := runner.RunCommand(kill, true); err != nil {
		logger.Debug("kill of previous server failed", "command", kill, "err", err, "stderr", stderr)
	}

	start := StartCommand(opts)
	logger.Info("starting remote server", "command", start)
	return runner.RunCommand(start, false)
}
