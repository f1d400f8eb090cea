// Package protocol defines the wire contract between the chat client and the
// room server: JSON event frames and the typed event union the room state
// consumes.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names as they appear on the wire.
const (
	EventJoin        = "join"
	EventSnapshot    = "snapshot"
	EventUserJoined  = "userJoined"
	EventUserLeft    = "userLeft"
	EventChatMessage = "chatMessage"
	EventTyping      = "typing"
)

// ErrMalformed is returned when a frame cannot be applied as a whole: bad
// JSON, an unknown event name, or a required field missing. Malformed frames
// must be dropped entirely, never partially applied.
var ErrMalformed = errors.New("malformed event")

// EntryKind tags a transcript entry.
type EntryKind string

const (
	EntryMessage EntryKind = "message"
	EntryJoined  EntryKind = "joined"
	EntryLeft    EntryKind = "left"
)

// Valid reports whether the kind is one of the known transcript entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryMessage, EntryJoined, EntryLeft:
		return true
	default:
		return false
	}
}

// TranscriptEntry is a single transcript item as carried inside a snapshot.
type TranscriptEntry struct {
	Kind     EntryKind `json:"kind"`
	Username string    `json:"username"`
	Text     string    `json:"text,omitempty"`
}

// Envelope is the outer frame for every event: the event name plus its
// payload. Servers and channel adapters frame with it; clients decode it
// through Decode.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is the tagged union of everything that can cross the channel.
// Concrete types: Join, Snapshot, UserJoined, UserLeft, ChatMessage, Typing.
type Event interface {
	// Name returns the wire event name.
	Name() string
}

// Join is the outbound intent sent once after the username is accepted.
type Join struct {
	Username string `json:"username"`
}

// Snapshot is a full-state push from the server. It replaces the local
// roster and transcript wholesale, it is never merged.
type Snapshot struct {
	Users []string          `json:"users"`
	Chats []TranscriptEntry `json:"chats"`
}

// UserJoined announces a participant entering the room.
type UserJoined struct {
	Username string `json:"username"`
}

// UserLeft announces a participant leaving the room.
type UserLeft struct {
	Username string `json:"username"`
}

// ChatMessage carries one chat line. ID is a client-generated identifier
// used to suppress a server that echoes the sender's own message back;
// servers that do not round-trip it leave it empty.
type ChatMessage struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Typing reports a typing transition. Outbound frames may leave Username
// empty, the server injects the sender's identity before fan-out.
type Typing struct {
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

func (Join) Name() string        { return EventJoin }
func (Snapshot) Name() string    { return EventSnapshot }
func (UserJoined) Name() string  { return EventUserJoined }
func (UserLeft) Name() string    { return EventUserLeft }
func (ChatMessage) Name() string { return EventChatMessage }
func (Typing) Name() string      { return EventTyping }

// Encode wraps an event in its envelope and marshals it to a wire frame.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", ev.Name(), err)
	}
	data, err := json.Marshal(Envelope{Event: ev.Name(), Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", ev.Name(), err)
	}
	return data, nil
}

// Decode parses an inbound wire frame into a typed event. Validation is
// all-or-nothing: a frame with an unknown name or a missing required field
// yields an error wrapping ErrMalformed and no event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var ev interface {
		Event
		validate() error
	}
	switch env.Event {
	case EventSnapshot:
		ev = &Snapshot{}
	case EventUserJoined:
		ev = &UserJoined{}
	case EventUserLeft:
		ev = &UserLeft{}
	case EventChatMessage:
		ev = &ChatMessage{}
	case EventTyping:
		ev = &Typing{}
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformed, env.Event)
	}

	if err := json.Unmarshal(env.Data, ev); err != nil {
		return nil, fmt.Errorf("%w: bad %s payload: %v", ErrMalformed, env.Event, err)
	}
	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Event, err)
	}
	return ev, nil
}

func (ev *Snapshot) validate() error {
	for i, entry := range ev.Chats {
		if !entry.Kind.Valid() {
			return fmt.Errorf("chats[%d]: unknown kind %q", i, entry.Kind)
		}
		if entry.Username == "" {
			return fmt.Errorf("chats[%d]: missing username", i)
		}
	}
	for i, user := range ev.Users {
		if user == "" {
			return fmt.Errorf("users[%d]: empty username", i)
		}
	}
	return nil
}

func (ev *UserJoined) validate() error {
	if ev.Username == "" {
		return errors.New("missing username")
	}
	return nil
}

func (ev *UserLeft) validate() error {
	if ev.Username == "" {
		return errors.New("missing username")
	}
	return nil
}

func (ev *ChatMessage) validate() error {
	if ev.Username == "" {
		return errors.New("missing username")
	}
	if ev.Text == "" {
		return errors.New("missing text")
	}
	return nil
}

func (ev *Typing) validate() error {
	if ev.Username == "" {
		return errors.New("missing username")
	}
	return nil
}
