package session

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

// The negotiator implements the polite-peer collision protocol. Roles are
// derived, never configured: for any pair of ids the lexicographically
// smaller one is impolite, so both sides compute complementary roles with
// no coordination message. Glare, both sides offering at once, is the
// only real race, and it is settled by that comparison alone: the
// impolite peer ignores the colliding offer, the polite peer rolls its
// own back and answers.
//
// Races here are routine, not failures. Handlers absorb every protocol
// error locally; nothing throws out of the event loop.

// negotiate starts a spontaneous offer round toward a peer, typically
// because the transport reported negotiation-needed after a track change.
// Skipped while an offer is already in flight or the link is mid-exchange.
func (s *Session) negotiate(peer domain.ParticipantID) {
	e, ok := s.registry.get(peer)
	if !ok {
		return
	}
	if e.makingOffer || e.link.SignalingState() != webrtc.SignalingStateStable {
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("negotiation already in flight, skipping")
		return
	}

	e.makingOffer = true
	defer func() { e.makingOffer = false }()

	offer, err := e.link.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("create offer")
		return
	}
	if err := e.link.SetLocalDescription(offer); err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("set local offer")
		return
	}
	_ = s.channel.Send(protocol.Offer(s.selfID, peer, offer.SDP))
}

// handleOffer reacts to a remote offer, resolving glare by role. The
// entry is created on first contact, so an offer from a brand-new peer
// lands on a valid link, but only roster members count as contacts:
// snapshots always precede a newcomer's offer in delivery order, and a
// departed peer's late offer must stay a no-op.
func (s *Session) handleOffer(peer domain.ParticipantID, sdp string) {
	if _, ok := s.roster[peer]; !ok {
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("offer from unknown participant, dropped")
		return
	}
	e, err := s.peer(peer)
	if err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("creating peer entry for offer")
		return
	}

	collision := e.makingOffer || e.link.SignalingState() != webrtc.SignalingStateStable
	polite := domain.Polite(s.selfID, peer)

	e.ignoreOffer = collision && !polite
	if e.ignoreOffer {
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("glare lost by peer, ignoring offer")
		return
	}
	if collision {
		// Polite side: abandon the in-flight local offer and take theirs.
		if err := e.link.Rollback(); err != nil {
			log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("rollback")
			return
		}
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("glare: rolled back local offer")
	}

	if err := e.link.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("set remote offer")
		return
	}
	e.ignoreOffer = false

	answer, err := e.link.CreateAnswer()
	if err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("create answer")
		return
	}
	if err := e.link.SetLocalDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("set local answer")
		return
	}
	_ = s.channel.Send(protocol.Answer(s.selfID, peer, answer.SDP))
}

// handleAnswer applies a remote answer only while one is expected.
// Duplicate or late answers are dropped without touching any state.
func (s *Session) handleAnswer(peer domain.ParticipantID, sdp string) {
	e, ok := s.registry.get(peer)
	if !ok {
		return
	}
	if e.link.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("stale answer, dropped")
		return
	}
	if err := e.link.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		log.Error().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("set remote answer")
		return
	}
	e.ignoreOffer = false
}

// handleCandidate applies a remote candidate unless this peer is sitting
// out a lost glare round; those candidates belong to a negotiation this
// side is not pursuing.
func (s *Session) handleCandidate(peer domain.ParticipantID, ci webrtc.ICECandidateInit) {
	e, ok := s.registry.get(peer)
	if !ok {
		return
	}
	if e.ignoreOffer {
		log.Debug().Str("module", "session.negotiator").Str("peer", string(peer)).Msg("candidate while ignoring offer, dropped")
		return
	}
	if err := e.link.AddICECandidate(ci); err != nil {
		log.Debug().Err(err).Str("module", "session.negotiator").Str("peer", string(peer)).Msg("add candidate")
	}
}
