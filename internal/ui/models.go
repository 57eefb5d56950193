// internal/ui/models.go

package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rpictl/internal/control"
	"rpictl/internal/ui/messages"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Conn to połączenie z serwerem sterującym używane przez konsolę
type Conn interface {
	Connect(ctx context.Context) error
	Send(text string) error
	OnMessage(fn func(text string))
	OnDisconnect(fn func(err error))
	Connected() bool
	Addr() string
	Close() error
}

var _ Conn = (*control.Client)(nil)

// KeyMap definiuje skróty klawiszowe
type KeyMap struct {
	Send      key.Binding
	Reconnect key.Binding
	Clear     key.Binding
	Up        key.Binding
	Down      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap zwraca domyślne ustawienia klawiszy
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reconnect"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Up: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Reconnect, k.Clear, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Up, k.Down}}
}

// Status reprezentuje stan aplikacji
type Status struct {
	Message string
	IsError bool
}

const (
	headerHeight = 2
	footerHeight = 6
)

// Model to konsola kanału sterującego
type Model struct {
	keys       KeyMap
	help       help.Model
	conn       Conn
	events     chan tea.Msg
	stop       func()
	done       chan struct{}
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	lines      []string
	status     Status
	waiting    bool
	connected  bool
	connecting bool // trwa wybieranie, Reconnect jest ignorowany
	width      int
	height     int
	quitting   bool
}

// NewModel tworzy konsolę i podpina callbacki połączenia
func NewModel(conn Conn) Model {
	input := textinput.New()
	input.Placeholder = "shell command, help, hello..."
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SuccessStyle

	done := make(chan struct{})
	m := Model{
		keys:     DefaultKeyMap(),
		help:     help.New(),
		conn:     conn,
		events:   make(chan tea.Msg, 64),
		done:     done,
		stop:     sync.OnceFunc(func() { close(done) }),
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  s,
	}
	// Init od razu wybiera połączenie
	m.connecting = true

	conn.OnMessage(func(text string) {
		m.emit(messages.ResponseMsg{Text: text})
	})
	conn.OnDisconnect(func(err error) {
		m.emit(messages.DisconnectedMsg{Err: err})
	})
	return m
}

// emit przekazuje zdarzenie z gorutyny czytającej do pętli bubbletea
func (m Model) emit(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.done:
	}
}

func (m Model) waitForEvent() tea.Msg {
	select {
	case msg := <-m.events:
		return msg
	case <-m.done:
		return nil
	}
}

func (m Model) connect() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), control.DefaultDialTimeout)
	defer cancel()
	if err := m.conn.Connect(ctx); err != nil {
		return messages.ConnectFailedMsg{Err: err}
	}
	return messages.ConnectedMsg{Addr: m.conn.Addr()}
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Send(text); err != nil {
			return messages.SendFailedMsg{Err: err}
		}
		return nil
	}
}

// Init implementuje tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.connect, m.waitForEvent, textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.stop()
			m.conn.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reconnect):
			if m.connected || m.connecting {
				return m, nil
			}
			m.connecting = true
			m.SetStatus("connecting to "+m.conn.Addr()+"...", false)
			return m, m.connect
		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Send):
			return m.submit()
		case key.Matches(msg, m.keys.Up, m.keys.Down):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		// Pozostałe klawisze trafiają tylko do pola wejściowego
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
		m.input.Width = msg.Width - 6
		m.help.Width = msg.Width
		m.refresh()

	case messages.ConnectedMsg:
		m.connecting = false
		m.connected = true
		m.SetStatus("connected to "+msg.Addr, false)
		return m, nil

	case messages.ConnectFailedMsg:
		m.connecting = false
		m.connected = false
		m.SetStatus(fmt.Sprintf("connection failed: %v (ctrl+r to retry)", msg.Err), true)
		return m, nil

	case messages.ResponseMsg:
		m.waiting = false
		m.appendLine(ResponseStyle.Render(strings.TrimRight(msg.Text, "\n")))
		return m, m.waitForEvent

	case messages.DisconnectedMsg:
		m.waiting = false
		m.connected = false
		if msg.Err != nil {
			m.SetStatus(fmt.Sprintf("disconnected: %v (ctrl+r to reconnect)", msg.Err), true)
		} else {
			m.SetStatus("disconnected", false)
		}
		return m, m.waitForEvent

	case messages.SendFailedMsg:
		m.waiting = false
		m.SetStatus(fmt.Sprintf("send failed: %v", msg.Err), true)
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit wysyła zawartość pola wejściowego
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		m.SetStatus("command cannot be empty", true)
		return m, nil
	}
	if !m.connected {
		m.SetStatus("not connected (ctrl+r to reconnect)", true)
		return m, nil
	}

	m.input.Reset()
	m.ClearStatus()
	m.appendLine(CommandStyle.Render("> " + text))
	m.waiting = true
	return m, tea.Batch(m.send(text), m.spinner.Tick)
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View implementuje tea.Model
func (m Model) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	state := ErrorStyle.Render("● disconnected")
	if m.connected {
		state = SuccessStyle.Render("● " + m.conn.Addr())
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, TitleStyle.Render("rpictl console"), "  ", state)

	prompt := m.input.View()
	if m.waiting {
		prompt = m.spinner.View() + " " + prompt
	}

	var b strings.Builder
	b.WriteString(header + "\n\n")
	b.WriteString(WindowStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(InputStyle.Render(prompt) + "\n")
	if m.status.Message != "" {
		style := SuccessStyle
		if m.status.IsError {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.status.Message) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// SetStatus ustawia status aplikacji
func (m *Model) SetStatus(msg string, isError bool) {
	m.status = Status{
		Message: msg,
		IsError: isError,
	}
}

// ClearStatus czyści status
func (m *Model) ClearStatus() {
	m.status = Status{}
}

// Lines zwraca historię konsoli
func (m Model) Lines() []string {
	return m.lines
}

func (m Model) IsConnected() bool {
	return m.connected
}

func (m Model) IsWaiting() bool {
	return m.waiting
}

func (m Model) GetStatus() Status {
	return m.status
}
