package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roomchat/internal/view"
)

const sidebarWidth = 24

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Padding(1, 1).
			Border(lipgloss.NormalBorder(), false, true, false, false)

	meStyle = lipgloss.NewStyle().Bold(true)

	selfMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))

	typingStyle = lipgloss.NewStyle().Faint(true).Italic(true)

	footerStyle = lipgloss.NewStyle().Padding(0, 1)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("160")).
				Bold(true)
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	switch m.phase {
	case phaseLogin:
		return m.loginView()
	case phaseConnecting:
		return m.centered("joining the room...")
	default:
		return m.chatView()
	}
}

func (m Model) loginView() string {
	lines := []string{
		titleStyle.Render("What's your name?"),
		"",
		m.nameInput.View(),
	}
	if m.registering {
		lines = append(lines, "", "checking name...")
	}
	if m.loginErr != "" {
		lines = append(lines, "", errStyle.Render(m.loginErr))
	}
	return m.centered(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (m Model) centered(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) chatView() string {
	v := view.Project(m.state.Snapshot())

	sidebar := m.sidebarView(v)

	typing := v.TypingLine
	if v.Disconnected {
		typing = disconnectedStyle.Render("disconnected from room")
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		typingStyle.Render(typing),
		footerStyle.Render(m.msgInput.View()),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) sidebarView(v view.View) string {
	lines := []string{meStyle.Render("Me: " + v.Me)}
	for _, user := range v.Roster {
		lines = append(lines, user)
	}
	return sidebarStyle.Height(m.height - 1).Render(strings.Join(lines, "\n"))
}

// resize fits the viewport and inputs to the terminal. One line each for
// the typing indicator and the input footer.
func (m *Model) resize() {
	mainWidth := m.width - sidebarWidth
	if mainWidth < 20 {
		mainWidth = 20
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = m.height - 3
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.msgInput.Width = mainWidth - 4
	m.refreshTranscript()
}

// refreshTranscript re-renders the transcript into the viewport and keeps
// it pinned to the latest line.
func (m *Model) refreshTranscript() {
	v := view.Project(m.state.Snapshot())

	lines := make([]string, 0, len(v.Transcript))
	for _, line := range v.Transcript {
		if line.Self {
			lines = append(lines, selfMsgStyle.Render(line.Text))
		} else {
			lines = append(lines, line.Text)
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}
