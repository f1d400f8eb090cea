// End-to-end tests running real clients against an in-process room server
// stub. The stub implements just enough of the collaborator contract
// (login endpoint plus event fan-out) to exercise the client stack; it is
// test tooling, not a server implementation.
package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"roomchat/internal/channel"
	"roomchat/internal/room"
	"roomchat/internal/session"
	"roomchat/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type stubClient struct {
	conn     *websocket.Conn
	username string
	mu       sync.Mutex
}

func (c *stubClient) send(ev protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

// stubRoom is a minimal room server: it reserves names, replays history as
// a snapshot on join, and fans events out to everyone but the sender.
type stubRoom struct {
	mu      sync.Mutex
	names   map[string]bool
	clients map[*stubClient]bool
	history []protocol.TranscriptEntry
	srv     *httptest.Server
}

func newStubRoom(t *testing.T) *stubRoom {
	t.Helper()
	r := &stubRoom{
		names:   make(map[string]bool),
		clients: make(map[*stubClient]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", r.handleLogin)
	mux.HandleFunc("/ws", r.handleWS)
	r.srv = httptest.NewServer(mux)
	t.Cleanup(r.srv.Close)
	return r
}

func (r *stubRoom) loginURL() string {
	return r.srv.URL
}

func (r *stubRoom) wsURL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/ws"
}

func (r *stubRoom) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	accepted := !r.names[body.Name]
	if accepted {
		r.names[body.Name] = true
	}
	r.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]bool{"accepted": accepted})
}

func (r *stubRoom) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	client := &stubClient{conn: conn}
	defer r.dropClient(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Event {
		case protocol.EventJoin:
			var join protocol.Join
			if err := json.Unmarshal(env.Data, &join); err != nil {
				continue
			}
			r.addClient(client, join.Username)

		case protocol.EventChatMessage:
			var msg protocol.ChatMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			r.mu.Lock()
			r.history = append(r.history, protocol.TranscriptEntry{
				Kind:     protocol.EntryMessage,
				Username: msg.Username,
				Text:     msg.Text,
			})
			r.mu.Unlock()
			r.broadcast(&msg, client)

		case protocol.EventTyping:
			var typing protocol.Typing
			if err := json.Unmarshal(env.Data, &typing); err != nil {
				continue
			}
			typing.Username = client.username
			r.broadcast(&typing, client)
		}
	}
}

func (r *stubRoom) addClient(client *stubClient, username string) {
	r.mu.Lock()
	client.username = username
	users := make([]string, 0, len(r.clients))
	for other := range r.clients {
		users = append(users, other.username)
	}
	history := append([]protocol.TranscriptEntry(nil), r.history...)
	r.clients[client] = true
	r.history = append(r.history, protocol.TranscriptEntry{
		Kind:     protocol.EntryJoined,
		Username: username,
	})
	r.mu.Unlock()

	client.send(&protocol.Snapshot{Users: users, Chats: history})
	r.broadcast(&protocol.UserJoined{Username: username}, client)
}

func (r *stubRoom) dropClient(client *stubClient) {
	r.mu.Lock()
	_, present := r.clients[client]
	delete(r.clients, client)
	if present {
		delete(r.names, client.username)
		r.history = append(r.history, protocol.TranscriptEntry{
			Kind:     protocol.EntryLeft,
			Username: client.username,
		})
	}
	r.mu.Unlock()
	client.conn.Close()

	if present {
		r.broadcast(&protocol.UserLeft{Username: client.username}, client)
	}
}

func (r *stubRoom) broadcast(ev protocol.Event, sender *stubClient) {
	r.mu.Lock()
	targets := make([]*stubClient, 0, len(r.clients))
	for client := range r.clients {
		if client != sender {
			targets = append(targets, client)
		}
	}
	r.mu.Unlock()

	for _, client := range targets {
		client.send(ev)
	}
}

// testSession is one connected client: channel, room state, and the pump
// goroutine a real program runs between them.
type testSession struct {
	ch    *channel.Channel
	state *room.State
}

func startSession(t *testing.T, r *stubRoom, username string) *testSession {
	t.Helper()
	logger := log.New(io.Discard)

	registrar := session.NewRegistrar(r.loginURL())
	if err := registrar.Register(context.Background(), username); err != nil {
		t.Fatalf("Failed to register %s: %v", username, err)
	}

	ch := channel.New(r.wsURL(), logger)
	state := room.New(ch, logger)

	if err := ch.Connect(); err != nil {
		t.Fatalf("Failed to connect %s: %v", username, err)
	}
	t.Cleanup(ch.Disconnect)

	if err := state.Join(username); err != nil {
		t.Fatalf("Failed to join as %s: %v", username, err)
	}

	go func() {
		for ev := range ch.Events() {
			state.Apply(ev)
		}
		state.Disconnect()
	}()

	return &testSession{ch: ch, state: state}
}

// waitFor polls until the condition on the session's snapshot holds.
func waitFor(t *testing.T, s *testSession, what string, cond func(room.Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond(s.state.Snapshot()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s; state: %+v", what, s.state.Snapshot())
}

func hasRoster(users ...string) func(room.Snapshot) bool {
	return func(snap room.Snapshot) bool {
		if len(snap.Roster) != len(users) {
			return false
		}
		for i, user := range users {
			if snap.Roster[i] != user {
				return false
			}
		}
		return true
	}
}

func TestIntegration_RegisterRejectsTakenName(t *testing.T) {
	r := newStubRoom(t)

	registrar := session.NewRegistrar(r.loginURL())
	if err := registrar.Register(context.Background(), "alice"); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := registrar.Register(context.Background(), "alice"); err != session.ErrNameTaken {
		t.Errorf("Expected ErrNameTaken for duplicate name, got: %v", err)
	}
	if err := registrar.Register(context.Background(), "alice2"); err != nil {
		t.Errorf("Expected retry with fresh name to succeed, got: %v", err)
	}
}

func TestIntegration_PresenceAndMessages(t *testing.T) {
	r := newStubRoom(t)

	alice := startSession(t, r, "alice")
	waitFor(t, alice, "alice to join", func(snap room.Snapshot) bool {
		return snap.Phase == room.PhaseJoined
	})

	bob := startSession(t, r, "bob")

	// Bob's snapshot carries the existing membership; Alice learns about
	// Bob through a join event.
	waitFor(t, bob, "bob to see alice", hasRoster("alice"))
	waitFor(t, alice, "alice to see bob", hasRoster("bob"))

	if err := alice.state.Commit("hello bob"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	waitFor(t, bob, "bob to receive the message", func(snap room.Snapshot) bool {
		for _, entry := range snap.Transcript {
			if entry.Kind == protocol.EntryMessage && entry.Text == "hello bob" && !entry.Self {
				return true
			}
		}
		return false
	})

	// The sender has exactly one copy: the optimistic append, no echo.
	count := 0
	for _, entry := range alice.state.Snapshot().Transcript {
		if entry.Kind == protocol.EntryMessage && entry.Text == "hello bob" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one copy of the sent message, got %d", count)
	}
}

func TestIntegration_LateJoinerGetsHistory(t *testing.T) {
	r := newStubRoom(t)

	alice := startSession(t, r, "alice")
	if err := alice.state.Commit("first!"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Give the fan-out a moment to record the message before bob joins.
	time.Sleep(100 * time.Millisecond)

	bob := startSession(t, r, "bob")
	waitFor(t, bob, "bob to receive history", func(snap room.Snapshot) bool {
		for _, entry := range snap.Transcript {
			if entry.Kind == protocol.EntryMessage && entry.Text == "first!" {
				return true
			}
		}
		return false
	})
}

func TestIntegration_TypingLifecycle(t *testing.T) {
	r := newStubRoom(t)

	alice := startSession(t, r, "alice")
	bob := startSession(t, r, "bob")
	waitFor(t, alice, "alice to see bob", hasRoster("bob"))
	waitFor(t, bob, "bob to see alice", hasRoster("alice"))

	if err := bob.state.SetTyping(true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	waitFor(t, alice, "alice to see bob typing", func(snap room.Snapshot) bool {
		return len(snap.Typing) == 1 && snap.Typing[0] == "bob"
	})

	// Bob's own view never holds his typing state as a remote indicator.
	if got := bob.state.Snapshot().Typing; len(got) != 0 {
		t.Errorf("Expected no remote typing indicator for self, got %v", got)
	}

	if err := bob.state.SetTyping(false); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	waitFor(t, alice, "typing indicator to clear", func(snap room.Snapshot) bool {
		return len(snap.Typing) == 0
	})
}

func TestIntegration_LeaveWhileTyping(t *testing.T) {
	r := newStubRoom(t)

	alice := startSession(t, r, "alice")
	bob := startSession(t, r, "bob")
	waitFor(t, alice, "alice to see bob", hasRoster("bob"))
	waitFor(t, bob, "bob to see alice", hasRoster("alice"))

	if err := bob.state.SetTyping(true); err != nil {
		t.Fatalf("SetTyping failed: %v", err)
	}
	waitFor(t, alice, "alice to see bob typing", func(snap room.Snapshot) bool {
		return len(snap.Typing) == 1
	})

	// Bob drops without ever sending typing(false). The leave must prune
	// the indicator or it sticks forever.
	bob.ch.Disconnect()

	waitFor(t, alice, "bob to leave", hasRoster())
	if got := alice.state.Snapshot().Typing; len(got) != 0 {
		t.Errorf("Expected typing pruned after leave, got %v", got)
	}

	transcript := alice.state.Snapshot().Transcript
	if len(transcript) == 0 || transcript[len(transcript)-1].Kind != protocol.EntryLeft {
		t.Errorf("Expected a left entry at the end of the transcript, got %+v", transcript)
	}

	waitFor(t, bob, "bob's session to end", func(snap room.Snapshot) bool {
		return snap.Phase == room.PhaseDisconnected
	})
	if err := bob.state.Commit("too late"); err != room.ErrDisconnected {
		t.Errorf("Expected ErrDisconnected after channel loss, got: %v", err)
	}
}
