// Package relay implements the signaling relay: a websocket hub that
// carries room-scoped and peer-scoped messages between participants.
// It relays blindly; all negotiation logic lives in the clients.
package relay

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/edulab/huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Client is one connected participant. The send channel decouples slow
// readers from room broadcasts; a full buffer drops the frame rather than
// blocking the room (the channel is at-most-once by contract).
type Client struct {
	id    domain.ParticipantID
	name  string
	media domain.MediaFlags

	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	room   *Room // nil until a JOIN lands; guarded by mu
}

func newClient(id domain.ParticipantID, conn *websocket.Conn) *Client {
	return &Client{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, 32),
		media: domain.MediaFlags{Video: true, Audio: true},
	}
}

func (c *Client) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Client) participant() domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.Participant{ID: c.id, Name: c.name, Media: c.media}
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *Client) setMedia(media domain.MediaFlags) {
	c.mu.Lock()
	c.media = media
	c.mu.Unlock()
}
