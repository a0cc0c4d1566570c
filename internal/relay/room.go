package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

// Room is a threadsafe membership set. It owns no transport resources;
// clients are closed by the controller that created them.
type Room struct {
	id domain.RoomID

	mu      sync.RWMutex
	clients map[domain.ParticipantID]*Client
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:      id,
		clients: make(map[domain.ParticipantID]*Client),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()
	log.Info().Str("module", "relay.room").Str("room", string(r.id)).Str("participant", string(c.id)).Msg("participant added")
}

func (r *Room) Remove(id domain.ParticipantID) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
	log.Info().Str("module", "relay.room").Str("room", string(r.id)).Str("participant", string(id)).Msg("participant removed")
}

func (r *Room) Get(id domain.ParticipantID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Room) Empty() bool { return r.Size() == 0 }

// Snapshot is the roster sent in JOIN_ACK and PARTICIPANTS messages.
func (r *Room) Snapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.participant())
	}
	return out
}

// Broadcast fans a message out to every member except the sender.
// Backpressured members just miss the frame.
func (r *Room) Broadcast(from domain.ParticipantID, msg protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "relay.room").Msg("broadcast encode")
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sent, dropped := 0, 0
	for id, c := range r.clients {
		if id == from {
			continue
		}
		if err := c.TrySend(data); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "relay.room").Str("room", string(r.id)).Str("type", string(msg.Type)).Int("sent", sent).Int("dropped", dropped).Msg("broadcast")
}
