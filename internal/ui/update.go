package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"roomchat/internal/session"
	"roomchat/pkg/protocol"
)

// Messages produced by the session's asynchronous work. Registration runs
// inside a command so the surface never blocks on the login round-trip.
type (
	registeredMsg     struct{ name string }
	registerFailedMsg struct{ err error }
	connectedMsg      struct{}
	connectFailedMsg  struct{ err error }
	eventMsg          struct{ ev protocol.Event }
	channelClosedMsg  struct{}
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.phase {
		case phaseLogin:
			return m.updateLogin(msg)
		case phaseChat:
			return m.updateChat(msg)
		default:
			return m, nil
		}

	case registeredMsg:
		if err := m.identity.Confirm(msg.name); err != nil {
			m.logger.Error("failed to confirm identity", "err", err)
		}
		m.phase = phaseConnecting
		return m, m.connectCmd()

	case registerFailedMsg:
		m.registering = false
		if errors.Is(msg.err, session.ErrNameTaken) {
			m.loginErr = "username already exist! try again"
		} else {
			m.loginErr = "login failed: " + msg.err.Error()
		}
		return m, nil

	case connectedMsg:
		name, _ := m.identity.Username()
		if err := m.state.Join(name); err != nil {
			m.logger.Error("failed to join room", "err", err)
		}
		m.phase = phaseChat
		m.refreshTranscript()
		return m, tea.Batch(m.msgInput.Focus(), m.waitEventCmd(), textinput.Blink)

	case connectFailedMsg:
		m.phase = phaseLogin
		m.registering = false
		m.loginErr = "could not reach the room: " + msg.err.Error()
		return m, nil

	case eventMsg:
		m.state.Apply(msg.ev)
		m.refreshTranscript()
		return m, m.waitEventCmd()

	case channelClosedMsg:
		m.state.Disconnect()
		m.refreshTranscript()
		return m, nil
	}

	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" || m.registering {
			return m, nil
		}
		m.registering = true
		m.loginErr = ""
		return m, m.registerCmd(name)
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyCtrlS:
		m.buffer.SetText(m.msgInput.Value())
		text, ok := m.buffer.Commit()
		if !ok {
			return m, nil
		}
		if err := m.state.Commit(text); err != nil {
			m.logger.Error("failed to send message", "err", err)
		}
		m.msgInput.Reset()
		m.refreshTranscript()
		return m, nil

	case tea.KeyEsc:
		// Focus loss ends the typing state.
		m.msgInput.Blur()
		if m.buffer.Blur() {
			if err := m.state.SetTyping(false); err != nil {
				m.logger.Error("failed to clear typing state", "err", err)
			}
		}
		return m, nil
	}

	var cmds []tea.Cmd
	if !m.msgInput.Focused() {
		cmds = append(cmds, m.msgInput.Focus())
	}

	var cmd tea.Cmd
	m.msgInput, cmd = m.msgInput.Update(msg)
	cmds = append(cmds, cmd)

	m.buffer.SetText(m.msgInput.Value())
	if m.buffer.Keystroke() {
		if err := m.state.SetTyping(true); err != nil {
			m.logger.Error("failed to emit typing state", "err", err)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) registerCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.registrar.Register(ctx, name); err != nil {
			return registerFailedMsg{err: err}
		}
		return registeredMsg{name: name}
	}
}

func (m Model) connectCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.channel.Connect(); err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{}
	}
}

// waitEventCmd delivers the next channel event as a message. Feeding events
// through the program's message loop keeps every state mutation on a single
// goroutine, applied in arrival order.
func (m Model) waitEventCmd() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.channel.Events()
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}
