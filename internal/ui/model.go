// Package ui is the terminal surface for the chat client: a login prompt
// followed by the conversation view with roster sidebar, transcript, typing
// line, and input footer. All room state lives in the room package; this
// package only applies events, forwards local actions, and renders
// projections.
package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"roomchat/internal/channel"
	"roomchat/internal/compose"
	"roomchat/internal/config"
	"roomchat/internal/room"
	"roomchat/internal/session"
)

// phase is the surface's own lifecycle, distinct from the room session's.
type phase int

const (
	phaseLogin phase = iota
	phaseConnecting
	phaseChat
)

// Model is the Bubble Tea model for the whole client.
type Model struct {
	cfg    config.Config
	logger *log.Logger

	identity  *session.Identity
	registrar *session.Registrar
	channel   *channel.Channel
	state     *room.State
	buffer    *compose.Buffer

	nameInput textinput.Model
	msgInput  textinput.Model
	viewport  viewport.Model

	phase       phase
	width       int
	height      int
	ready       bool
	registering bool
	loginErr    string
}

// New wires a fresh client model: one owned channel for the session,
// injected into the room state as its emitter.
func New(cfg config.Config, logger *log.Logger) Model {
	ch := channel.New(cfg.ServerURL, logger)

	nameInput := textinput.New()
	nameInput.Placeholder = "your name"
	nameInput.CharLimit = 32
	nameInput.Width = 24
	nameInput.Focus()

	msgInput := textinput.New()
	msgInput.Placeholder = "say something"
	msgInput.CharLimit = 512

	return Model{
		cfg:       cfg,
		logger:    logger,
		identity:  &session.Identity{},
		registrar: session.NewRegistrar(cfg.LoginURL),
		channel:   ch,
		state:     room.New(ch, logger),
		buffer:    &compose.Buffer{},
		nameInput: nameInput,
		msgInput:  msgInput,
		viewport:  viewport.New(80, 20),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Channel exposes the session's channel so the caller can release it after
// the program exits.
func (m Model) Channel() *channel.Channel {
	return m.channel
}
