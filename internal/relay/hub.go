package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/domain"
)

// Hub tracks live rooms. Rooms appear when the first participant joins
// and disappear when the last one leaves; the hub never creates a room
// speculatively.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[domain.RoomID]*Room)}
}

func (h *Hub) GetOrCreate(id domain.RoomID) *Room {
	h.mu.RLock()
	room, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return room
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok = h.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	h.rooms[id] = room
	log.Info().Str("module", "relay.hub").Str("room", string(id)).Msg("room created")
	return room
}

func (h *Hub) Get(id domain.RoomID) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[id]
	return room, ok
}

// DropIfEmpty removes the room once its last member is gone.
func (h *Hub) DropIfEmpty(id domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[id]; ok && room.Empty() {
		delete(h.rooms, id)
		log.Info().Str("module", "relay.hub").Str("room", string(id)).Msg("empty room dropped")
	}
}

// RoomInfo is the read-only listing served by the HTTP API.
type RoomInfo struct {
	ID           domain.RoomID `json:"id"`
	Participants int           `json:"participants"`
}

func (h *Hub) List() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for id, room := range h.rooms {
		out = append(out, RoomInfo{ID: id, Participants: room.Size()})
	}
	return out
}
