// Package core defines the ports the session logic is written against.
// Adapters own the concrete transports; the session never imports them.
package core

import (
	"context"

	"github.com/edulab/huddle/internal/protocol"
)

// SignalChannel is the server-relayed message bus carrying join/leave,
// session-description and candidate messages for a room. At-most-once:
// Send drops silently while the channel is disconnected, and reconnection
// after a transport failure is automatic and invisible to the caller.
type SignalChannel interface {
	// Connect establishes the persistent channel. Idempotent: a second
	// call while a connection is active is a no-op. Connect failures are
	// not surfaced synchronously; the channel retries on a fixed backoff.
	Connect(ctx context.Context) error
	// Join announces entry into a room. The relay answers with a private
	// JOIN_ACK delivered through Events.
	Join(roomID, displayName string) error
	// Send publishes a message for relay. Fire-and-forget.
	Send(msg protocol.Message) error
	// Events yields inbound messages in per-sender delivery order.
	// The channel is closed after Close.
	Events() <-chan protocol.Message
	Close() error
}
