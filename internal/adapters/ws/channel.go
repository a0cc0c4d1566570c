// Package ws implements core.SignalChannel over a gorilla/websocket
// connection to the signaling relay.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/protocol"
)

var _ core.SignalChannel = (*Channel)(nil)

var ErrBackpressure = errors.New("backpressure")

const (
	writeWait      = 5 * time.Second
	sendBuffer     = 32
	eventBuffer    = 64
	defaultBackoff = 3 * time.Second
)

// Channel is an at-most-once signaling channel. Messages sent while the
// socket is down are dropped, not queued; the relay's roster snapshots let
// the session resynchronize after a reconnect.
type Channel struct {
	url        string
	backoff    time.Duration
	pingPeriod time.Duration
	readLimit  int64

	send   chan protocol.Message
	events chan protocol.Message

	mu        sync.Mutex
	started   bool
	connected bool
	room      string
	name      string

	closed    chan struct{}
	closeOnce sync.Once
}

type Options struct {
	URL        string
	Backoff    time.Duration
	PingPeriod time.Duration
	ReadLimit  int64
}

func NewChannel(opts Options) *Channel {
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Channel{
		url:        opts.URL,
		backoff:    backoff,
		pingPeriod: opts.PingPeriod,
		readLimit:  opts.ReadLimit,
		send:       make(chan protocol.Message, sendBuffer),
		events:     make(chan protocol.Message, eventBuffer),
		closed:     make(chan struct{}),
	}
}

// Connect starts the dial/redial loop. Idempotent: only the first call
// does anything. Dial failures are retried on a fixed backoff and never
// surfaced to the caller.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Join records the room so a reconnect can rejoin, then announces entry.
func (c *Channel) Join(roomID, displayName string) error {
	c.mu.Lock()
	c.room = roomID
	c.name = displayName
	c.mu.Unlock()
	return c.Send(protocol.Message{Type: protocol.TypeJoin, RoomID: roomID, Username: displayName})
}

// Send queues a message for the writer. Dropped silently while the socket
// is down or the writer is saturated.
func (c *Channel) Send(msg protocol.Message) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		log.Debug().Str("module", "ws").Str("type", string(msg.Type)).Msg("send while disconnected, dropped")
		return nil
	}
	select {
	case c.send <- msg:
		return nil
	default:
		log.Warn().Str("module", "ws").Str("type", string(msg.Type)).Msg("send buffer full, dropped")
		return ErrBackpressure
	}
}

func (c *Channel) Events() <-chan protocol.Message { return c.events }

func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("url", c.url).Msg("dial failed, will retry")
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.setConnected(true)
		c.rejoin()
		c.pump(ctx, conn)
		c.setConnected(false)
		_ = conn.Close()

		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// rejoin re-announces room membership after a reconnect so the relay
// restores this client into the roster.
func (c *Channel) rejoin() {
	c.mu.Lock()
	room, name := c.room, c.name
	c.mu.Unlock()
	if room == "" {
		return
	}
	select {
	case c.send <- protocol.Message{Type: protocol.TypeJoin, RoomID: room, Username: name}:
	default:
	}
}

// pump runs the reader and writer for one socket lifetime and returns
// when either side fails.
func (c *Channel) pump(ctx context.Context, conn *websocket.Conn) {
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("read error")
				return
			}
			msg, err := protocol.Decode(data)
			if err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("dropping malformed frame")
				continue
			}
			select {
			case c.events <- msg:
			default:
				log.Warn().Str("module", "ws").Str("type", string(msg.Type)).Msg("event buffer full, dropped")
			}
		}
	}()

	var ping <-chan time.Time
	if c.pingPeriod > 0 {
		ticker := time.NewTicker(c.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			<-readDone
			return
		case <-c.closed:
			_ = conn.Close()
			<-readDone
			return
		case <-readDone:
			return
		case <-ping:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("ping write error")
				return
			}
		case msg := <-c.send:
			data, err := msg.Encode()
			if err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("encode")
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("write error")
				return
			}
		}
	}
}

func (c *Channel) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	case <-time.After(c.backoff):
		return true
	}
}
