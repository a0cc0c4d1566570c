package session

import (
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
)

// peerEntry is the negotiation state for one remote participant. makingOffer
// marks an offer under construction; ignoreOffer marks a lost glare round
// and stays true only until the next remote description applies cleanly.
type peerEntry struct {
	id          domain.ParticipantID
	link        core.PeerLink
	makingOffer bool
	ignoreOffer bool
}

// Registry owns the per-peer connection entries. It is confined to the
// session event loop, so no locking: every mutation happens on that one
// goroutine. Never more than one live entry per peer id.
type Registry struct {
	entries map[domain.ParticipantID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.ParticipantID]*peerEntry)}
}

func (r *Registry) get(id domain.ParticipantID) (*peerEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// getOrCreate returns the existing entry or constructs one from the link
// produced by build. build runs only when no entry exists, so the single
// entry-per-peer invariant holds.
func (r *Registry) getOrCreate(id domain.ParticipantID, build func(domain.ParticipantID) (core.PeerLink, error)) (*peerEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	link, err := build(id)
	if err != nil {
		return nil, err
	}
	e := &peerEntry{id: id, link: link}
	r.entries[id] = e
	log.Info().Str("module", "session.registry").Str("peer", string(id)).Msg("peer entry created")
	return e, nil
}

// remove releases the entry's transport resources and deletes it.
// Idempotent: removing an unknown peer is a no-op.
func (r *Registry) remove(id domain.ParticipantID) {
	e, ok := r.entries[id]
	if !ok {
		return
	}
	delete(r.entries, id)
	e.link.Close()
	log.Info().Str("module", "session.registry").Str("peer", string(id)).Msg("peer entry removed")
}

// removeAll tears down every entry; used on session teardown.
func (r *Registry) removeAll() {
	for id := range r.entries {
		r.remove(id)
	}
}

func (r *Registry) each(fn func(*peerEntry)) {
	for _, e := range r.entries {
		fn(e)
	}
}

func (r *Registry) size() int { return len(r.entries) }
