// Package room holds the client's local view of the shared chat room: the
// roster, the transcript, and the typing set. It applies inbound channel
// events in delivery order and turns local actions into outgoing intents.
package room

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"roomchat/pkg/protocol"
)

var (
	// ErrNotJoined is returned for local actions before the session joined.
	ErrNotJoined = errors.New("not joined")

	// ErrDisconnected is returned for local actions after the channel closed.
	ErrDisconnected = errors.New("disconnected from room")

	// ErrAlreadyJoined is returned when Join is called twice for one session.
	ErrAlreadyJoined = errors.New("already joined")
)

// Phase is the session lifecycle. A session joins exactly once and, if the
// channel goes away, ends in PhaseDisconnected with no recovery.
type Phase int

const (
	PhaseUnjoined Phase = iota
	PhaseJoined
	PhaseDisconnected
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseUnjoined:
		return "UNJOINED"
	case PhaseJoined:
		return "JOINED"
	case PhaseDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Emitter sends outgoing intents to the room server. The channel adapter
// implements it; the room state never touches the transport directly.
type Emitter interface {
	EmitJoin(username string) error
	EmitChat(msg protocol.ChatMessage) error
	EmitTyping(isTyping bool) error
}

// Entry is one transcript item. Self marks entries authored by the local
// user so the view can style them apart.
type Entry struct {
	Kind     protocol.EntryKind
	Username string
	Text     string
	Self     bool
}

// Snapshot is an immutable copy of the room state, safe to hand to the view
// projector while events keep arriving.
type Snapshot struct {
	Phase       Phase
	Self        string
	Roster      []string
	Transcript  []Entry
	Typing      []string
	LocalTyping bool
}

// State is the reconciler. All mutation is serialized behind one mutex so
// events apply strictly in delivery order regardless of which goroutine
// delivers them.
type State struct {
	mu      sync.Mutex
	logger  *log.Logger
	emitter Emitter

	phase       Phase
	self        string
	roster      []string
	transcript  []Entry
	typing      map[string]struct{}
	localTyping bool

	// pending holds ids of optimistically appended messages so a server
	// that echoes the sender's own message back does not duplicate it.
	pending map[string]struct{}
}

// New creates an unjoined room state emitting intents through the given
// emitter.
func New(emitter Emitter, logger *log.Logger) *State {
	return &State{
		logger:  logger,
		emitter: emitter,
		typing:  make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Join transitions the session to Joined under the confirmed username and
// announces it to the room. It succeeds at most once per session.
func (s *State) Join(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseJoined:
		return ErrAlreadyJoined
	case PhaseDisconnected:
		return ErrDisconnected
	}

	if err := s.emitter.EmitJoin(username); err != nil {
		return fmt.Errorf("failed to announce join: %w", err)
	}

	s.self = username
	s.phase = PhaseJoined
	s.logger.Info("joined room", "username", username)
	return nil
}

// Apply reconciles one inbound event into the local state. Events arriving
// before the session joined or after it disconnected are dropped. Apply
// never fails: anything it cannot use is logged and discarded whole.
func (s *State) Apply(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseJoined {
		s.logger.Debug("dropping event outside joined phase", "event", ev.Name(), "phase", s.phase)
		return
	}

	switch ev := ev.(type) {
	case *protocol.Snapshot:
		s.applySnapshot(ev)
	case *protocol.UserJoined:
		s.applyUserJoined(ev.Username)
	case *protocol.UserLeft:
		s.applyUserLeft(ev.Username)
	case *protocol.ChatMessage:
		s.applyChatMessage(ev)
	case *protocol.Typing:
		s.applyTyping(ev)
	default:
		s.logger.Warn("dropping unhandled event", "event", ev.Name())
	}
}

// applySnapshot replaces roster and transcript wholesale. A second snapshot
// is a hard resync, not an anomaly: everything accumulated locally since the
// previous one is discarded, including pending echo suppressions.
func (s *State) applySnapshot(ev *protocol.Snapshot) {
	roster := make([]string, 0, len(ev.Users))
	seen := make(map[string]struct{}, len(ev.Users))
	for _, user := range ev.Users {
		// Self is tracked separately and never part of the roster.
		if user == s.self {
			continue
		}
		if _, ok := seen[user]; ok {
			continue
		}
		seen[user] = struct{}{}
		roster = append(roster, user)
	}
	s.roster = roster

	transcript := make([]Entry, 0, len(ev.Chats))
	for _, chat := range ev.Chats {
		transcript = append(transcript, Entry{
			Kind:     chat.Kind,
			Username: chat.Username,
			Text:     chat.Text,
			Self:     chat.Kind == protocol.EntryMessage && chat.Username == s.self,
		})
	}
	s.transcript = transcript

	// Typing has no representation in a snapshot. Prune entries for users
	// the new roster no longer contains so the set stays inside it.
	for user := range s.typing {
		if _, ok := seen[user]; !ok {
			delete(s.typing, user)
		}
	}

	s.pending = make(map[string]struct{})
	s.logger.Info("applied snapshot", "users", len(roster), "chats", len(transcript))
}

func (s *State) applyUserJoined(username string) {
	if username == s.self {
		return
	}
	// Duplicate deliveries happen; a user already present is a no-op so the
	// roster never holds the same name twice.
	if s.inRoster(username) {
		s.logger.Debug("duplicate join ignored", "username", username)
		return
	}
	s.roster = append(s.roster, username)
	s.transcript = append(s.transcript, Entry{Kind: protocol.EntryJoined, Username: username})
	s.logger.Info("user joined", "username", username)
}

// applyUserLeft removes the user from the roster and always prunes the
// typing set: the server can deliver a leave without a preceding
// "stopped typing", and a missed prune leaves a stale indicator forever.
func (s *State) applyUserLeft(username string) {
	if username == s.self {
		return
	}
	for i, user := range s.roster {
		if user == username {
			s.roster = append(s.roster[:i], s.roster[i+1:]...)
			break
		}
	}
	delete(s.typing, username)
	s.transcript = append(s.transcript, Entry{Kind: protocol.EntryLeft, Username: username})
	s.logger.Info("user left", "username", username)
}

func (s *State) applyChatMessage(ev *protocol.ChatMessage) {
	if ev.Username == s.self && ev.ID != "" {
		if _, ok := s.pending[ev.ID]; ok {
			// The server echoed our own message back; the optimistic append
			// already put it in the transcript.
			delete(s.pending, ev.ID)
			return
		}
	}
	s.transcript = append(s.transcript, Entry{
		Kind:     protocol.EntryMessage,
		Username: ev.Username,
		Text:     ev.Text,
		Self:     ev.Username == s.self,
	})
}

func (s *State) applyTyping(ev *protocol.Typing) {
	// Our own typing events must never show up as a remote indicator.
	if ev.Username == s.self {
		return
	}
	if ev.IsTyping {
		s.typing[ev.Username] = struct{}{}
	} else {
		delete(s.typing, ev.Username)
	}
}

// Commit appends the staged text as a self-authored transcript entry and
// emits it, without waiting for any server confirmation. Committing
// whitespace-only text is a no-op. A send also ends the local typing state,
// emitting typing(false) when it was set.
func (s *State) Commit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireJoined(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	msg := protocol.ChatMessage{
		ID:       uuid.NewString(),
		Username: s.self,
		Text:     text,
	}
	s.transcript = append(s.transcript, Entry{
		Kind:     protocol.EntryMessage,
		Username: s.self,
		Text:     text,
		Self:     true,
	})
	s.pending[msg.ID] = struct{}{}

	if err := s.emitter.EmitChat(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if s.localTyping {
		s.localTyping = false
		if err := s.emitter.EmitTyping(false); err != nil {
			return fmt.Errorf("failed to clear typing state: %w", err)
		}
	}
	return nil
}

// SetTyping records the local typing status and emits exactly one typing
// event per transition. Repeated calls with an unchanged status emit
// nothing.
func (s *State) SetTyping(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireJoined(); err != nil {
		return err
	}
	if s.localTyping == on {
		return nil
	}
	if err := s.emitter.EmitTyping(on); err != nil {
		return fmt.Errorf("failed to emit typing state: %w", err)
	}
	s.localTyping = on
	return nil
}

// Disconnect moves the session to its terminal phase. Further events are
// dropped and further local actions fail; there is no client-side recovery.
func (s *State) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseDisconnected {
		return
	}
	s.phase = PhaseDisconnected
	s.localTyping = false
	s.logger.Warn("room channel closed", "username", s.self)
}

// Snapshot returns a deep copy of the current state for rendering. The
// typing set is returned sorted for stable output.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	typing := make([]string, 0, len(s.typing))
	for user := range s.typing {
		typing = append(typing, user)
	}
	sort.Strings(typing)

	return Snapshot{
		Phase:       s.phase,
		Self:        s.self,
		Roster:      append([]string(nil), s.roster...),
		Transcript:  append([]Entry(nil), s.transcript...),
		Typing:      typing,
		LocalTyping: s.localTyping,
	}
}

func (s *State) requireJoined() error {
	switch s.phase {
	case PhaseUnjoined:
		return ErrNotJoined
	case PhaseDisconnected:
		return ErrDisconnected
	}
	return nil
}

func (s *State) inRoster(username string) bool {
	for _, user := range s.roster {
		if user == username {
			return true
		}
	}
	return false
}

