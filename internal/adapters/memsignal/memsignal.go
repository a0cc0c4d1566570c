// Package memsignal is an in-process signaling bus for tests. Endpoints
// exchange protocol messages through an internal map, bypassing the relay
// entirely, so two sessions can negotiate without any network.
package memsignal

import (
	"context"
	"sync"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

const endpointBuffer = 256

// Bus routes messages between registered endpoints with relay semantics:
// peer-scoped messages go to the named endpoint, room-scoped messages fan
// out to everyone else in the sender's room.
type Bus struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
}

func NewBus() *Bus {
	return &Bus{endpoints: make(map[string]*Endpoint)}
}

// Endpoint registers a participant with a fixed id. Unlike the relay,
// tests choose ids up front so role assignment is predictable.
func (b *Bus) Endpoint(id string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.endpoints[id]; ok {
		return e
	}
	e := &Endpoint{
		bus:    b,
		id:     id,
		events: make(chan protocol.Message, endpointBuffer),
	}
	b.endpoints[id] = e
	return e
}

func (b *Bus) roster(room string) []domain.Participant {
	var out []domain.Participant
	for _, e := range b.endpoints {
		if e.room == room && e.joined {
			out = append(out, domain.Participant{ID: domain.ParticipantID(e.id), Name: e.name})
		}
	}
	return out
}

var _ core.SignalChannel = (*Endpoint)(nil)

// Endpoint is one participant's view of the bus.
type Endpoint struct {
	bus    *Bus
	id     string
	room   string
	name   string
	joined bool
	events chan protocol.Message
}

func (e *Endpoint) Connect(context.Context) error { return nil }

func (e *Endpoint) Join(roomID, displayName string) error {
	e.bus.mu.Lock()
	e.room = roomID
	e.name = displayName
	e.joined = true
	roster := e.bus.roster(roomID)
	e.deliver(protocol.Message{Type: protocol.TypeJoinAck, SelfID: e.id, Participants: roster})
	for _, other := range e.bus.endpoints {
		if other != e && other.room == roomID && other.joined {
			other.deliver(protocol.Message{Type: protocol.TypeParticipants, Participants: roster})
		}
	}
	e.bus.mu.Unlock()
	return nil
}

func (e *Endpoint) Send(msg protocol.Message) error {
	if msg.From == "" {
		msg.From = e.id
	}
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if msg.To != "" {
		if target, ok := e.bus.endpoints[msg.To]; ok {
			target.deliver(msg)
		}
		return nil
	}
	for _, other := range e.bus.endpoints {
		if other != e && other.room == e.room && other.joined {
			other.deliver(msg)
		}
	}
	return nil
}

func (e *Endpoint) Events() <-chan protocol.Message { return e.events }

func (e *Endpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if !e.joined {
		return nil
	}
	e.joined = false
	for _, other := range e.bus.endpoints {
		if other != e && other.room == e.room && other.joined {
			other.deliver(protocol.Message{Type: protocol.TypeLeave, From: e.id})
		}
	}
	return nil
}

func (e *Endpoint) deliver(msg protocol.Message) {
	select {
	case e.events <- msg:
	default:
	}
}
