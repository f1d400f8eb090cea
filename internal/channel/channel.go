// Package channel adapts a websocket connection to the typed event stream
// the room state consumes. It is the only package that knows the transport:
// wire frames are decoded here into protocol events, and the room's outgoing
// intents are encoded here, so the reconciler stays transport-free.
package channel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"roomchat/pkg/protocol"
)

// ErrNotConnected is returned when emitting before Connect or after the
// connection went away.
var ErrNotConnected = errors.New("not connected to server")

// Channel is a websocket event channel to the room server. One Channel is
// owned by one session: dialed once, injected into the room state as its
// emitter, and released on teardown.
type Channel struct {
	url    string
	logger *log.Logger

	conn     *websocket.Conn
	mu       sync.RWMutex
	writeMu  sync.Mutex
	events   chan protocol.Event
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a disconnected Channel for the given websocket URL.
func New(url string, logger *log.Logger) *Channel {
	return &Channel{
		url:    url,
		logger: logger,
		events: make(chan protocol.Event, 16),
		done:   make(chan struct{}),
	}
}

// Connect dials the server and starts the receive loop.
func (c *Channel) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents()

	return nil
}

// Disconnect closes the connection and waits for the receive loop to stop.
// Safe to call more than once and without a prior Connect.
func (c *Channel) Disconnect() {
	c.doneOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// IsConnected returns whether the channel currently holds a connection.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Events returns the inbound event stream. The channel is closed when the
// connection is gone; consumers treat that as the session's disconnect.
func (c *Channel) Events() <-chan protocol.Event {
	return c.events
}

// EmitJoin announces the confirmed username to the room.
func (c *Channel) EmitJoin(username string) error {
	return c.emit(protocol.Join{Username: username})
}

// EmitChat sends one chat message.
func (c *Channel) EmitChat(msg protocol.ChatMessage) error {
	return c.emit(msg)
}

// EmitTyping sends a typing transition. The username is left empty; the
// server injects the sender's identity on fan-out.
func (c *Channel) EmitTyping(isTyping bool) error {
	return c.emit(protocol.Typing{IsTyping: isTyping})
}

func (c *Channel) emit(ev protocol.Event) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Name(), err)
	}

	// gorilla/websocket allows one concurrent writer only.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s event: %w", ev.Name(), err)
	}
	return nil
}

// receiveEvents reads frames until the connection dies, decoding each one
// into a typed event. Malformed frames are dropped whole and logged; they
// never stop the loop.
func (c *Channel) receiveEvents() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("read from server failed", "err", err)
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed event", "err", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
