// Package session implements the client-side conferencing session: one
// signaling channel, one negotiation state machine per remote peer, and
// the local media/presence state.
//
// Everything runs on a single event loop. Inbound signaling, transport
// callbacks and user commands are funneled into that loop, so handlers
// see a consistent world without locks; the only races left are protocol
// level (simultaneous offers), which the negotiator resolves.
package session

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

const commandBuffer = 64

// LinkFactory builds the transport connection for a new peer entry.
type LinkFactory func(peer domain.ParticipantID) (core.PeerLink, error)

// ChatMessage is a room chat line surfaced to the embedder.
type ChatMessage struct {
	From     domain.ParticipantID
	Username string
	Content  string
}

// Hooks are optional observer callbacks, invoked from the event loop.
// They must not block.
type Hooks struct {
	RemoteTrack func(peer domain.ParticipantID, track *webrtc.TrackRemote)
	Chat        func(msg ChatMessage)
	Roster      func(participants []domain.Participant)
}

// Session is one participant's view of a room.
type Session struct {
	channel core.SignalChannel
	source  core.MediaSource
	links   LinkFactory
	hooks   Hooks

	selfID      domain.ParticipantID
	displayName string
	roomID      string

	registry *Registry
	roster   map[domain.ParticipantID]*domain.Participant

	microphone core.LocalTrack
	camera     core.LocalTrack
	screen     core.LocalTrack // nil unless sharing
	flags      domain.MediaFlags

	commands chan func()
}

func New(channel core.SignalChannel, source core.MediaSource, links LinkFactory, hooks Hooks) *Session {
	return &Session{
		channel:  channel,
		source:   source,
		links:    links,
		hooks:    hooks,
		registry: NewRegistry(),
		roster:   make(map[domain.ParticipantID]*domain.Participant),
		commands: make(chan func(), commandBuffer),
	}
}

// Join acquires the local capture tracks, connects the signaling channel
// and announces entry. Camera or microphone failure blocks room entry.
func (s *Session) Join(ctx context.Context, roomID, displayName string) error {
	mic, err := s.source.CaptureMicrophone()
	if err != nil {
		return fmt.Errorf("acquiring microphone: %w", err)
	}
	camera, err := s.source.CaptureCamera()
	if err != nil {
		mic.Stop()
		return fmt.Errorf("acquiring camera: %w", err)
	}
	s.microphone = mic
	s.camera = camera
	s.flags = domain.MediaFlags{Video: true, Audio: true}
	s.roomID = roomID
	s.displayName = displayName

	if err := s.channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting signaling channel: %w", err)
	}
	if err := s.channel.Join(roomID, displayName); err != nil {
		return fmt.Errorf("joining room: %w", err)
	}
	log.Info().Str("module", "session").Str("room", roomID).Str("name", displayName).Msg("join sent")
	return nil
}

// Run pumps the event loop until ctx is cancelled or the channel closes,
// then tears the session down. Teardown is synchronous: every peer link
// is closed before Run returns, so no negotiation completes afterwards.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()
	events := s.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.commands:
			fn()
		case msg, ok := <-events:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

// Leave announces departure and stops the session. Safe from any goroutine.
func (s *Session) Leave() {
	s.post(func() {
		_ = s.channel.Send(protocol.Message{Type: protocol.TypeLeave, From: string(s.selfID)})
		_ = s.channel.Close()
	})
}

// SelfID returns the relay-assigned participant id, empty before JOIN_ACK.
func (s *Session) SelfID() domain.ParticipantID { return s.selfID }

// ToggleCamera, ToggleMicrophone, StartScreenShare, StopScreenShare and
// SendChat are the embedder-facing commands; they hop onto the event loop.
func (s *Session) ToggleCamera()     { s.post(s.toggleCamera) }
func (s *Session) ToggleMicrophone() { s.post(s.toggleMicrophone) }
func (s *Session) StopScreenShare()  { s.post(s.stopScreenShare) }
func (s *Session) StartScreenShare() {
	s.post(func() {
		if err := s.startScreenShare(); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("screen share failed")
		}
	})
}

func (s *Session) SendChat(content string) {
	s.post(func() {
		_ = s.channel.Send(protocol.Chat(s.selfID, s.displayName, content))
	})
}

// post funnels work into the event loop. Drops when the loop is saturated;
// droppable commands are all recoverable through later roster snapshots.
func (s *Session) post(fn func()) {
	select {
	case s.commands <- fn:
	default:
		log.Warn().Str("module", "session").Msg("command buffer full, dropped")
	}
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinAck:
		s.handleJoinAck(msg)
	case protocol.TypeParticipants:
		s.handleParticipants(msg)
	case protocol.TypeOffer:
		s.handleOffer(domain.ParticipantID(msg.From), msg.SDP)
	case protocol.TypeAnswer:
		s.handleAnswer(domain.ParticipantID(msg.From), msg.SDP)
	case protocol.TypeICE:
		s.handleCandidate(domain.ParticipantID(msg.From), *msg.Candidate)
	case protocol.TypeLeave:
		s.handleLeave(domain.ParticipantID(msg.From))
	case protocol.TypeMediaState:
		s.handleMediaState(domain.ParticipantID(msg.From), *msg.Media)
	case protocol.TypeChat:
		s.handleChat(msg)
	default:
		log.Debug().Str("module", "session").Str("type", string(msg.Type)).Msg("ignoring message")
	}
}

// handleJoinAck records the relay-assigned id and dials every participant
// already in the room. Existing members wait for the newcomer's offers;
// if both sides dial anyway, glare resolution settles it.
func (s *Session) handleJoinAck(msg protocol.Message) {
	s.selfID = domain.ParticipantID(msg.SelfID)
	s.applyRoster(msg.Participants)
	log.Info().Str("module", "session").Str("self", msg.SelfID).Int("participants", len(msg.Participants)).Msg("joined")

	for _, p := range msg.Participants {
		if p.ID == s.selfID {
			continue
		}
		if _, err := s.peer(p.ID); err != nil {
			log.Error().Err(err).Str("module", "session").Str("peer", string(p.ID)).Msg("creating peer entry")
		}
	}
	_ = s.channel.Send(protocol.MediaState(s.selfID, s.flags))
}

func (s *Session) handleParticipants(msg protocol.Message) {
	s.applyRoster(msg.Participants)
}

func (s *Session) handleLeave(peer domain.ParticipantID) {
	s.registry.remove(peer)
	delete(s.roster, peer)
	s.notifyRoster()
	log.Info().Str("module", "session").Str("peer", string(peer)).Msg("participant left")
}

// handleMediaState updates only the named participant's presence flags.
// Presence never feeds back into negotiation.
func (s *Session) handleMediaState(peer domain.ParticipantID, media domain.MediaFlags) {
	p, ok := s.roster[peer]
	if !ok {
		return
	}
	p.Media = media
	s.notifyRoster()
}

func (s *Session) handleChat(msg protocol.Message) {
	if s.hooks.Chat != nil {
		s.hooks.Chat(ChatMessage{
			From:     domain.ParticipantID(msg.From),
			Username: msg.Username,
			Content:  msg.Content,
		})
	}
}

// applyRoster replaces the known roster with a server snapshot, keeping
// locally known flags for participants the snapshot carries no media for.
func (s *Session) applyRoster(participants []domain.Participant) {
	seen := make(map[domain.ParticipantID]bool, len(participants))
	for _, p := range participants {
		seen[p.ID] = true
		if existing, ok := s.roster[p.ID]; ok {
			existing.Name = p.Name
			continue
		}
		cp := p
		s.roster[p.ID] = &cp
	}
	for id := range s.roster {
		if !seen[id] {
			delete(s.roster, id)
		}
	}
	s.notifyRoster()
}

func (s *Session) notifyRoster() {
	if s.hooks.Roster == nil {
		return
	}
	out := make([]domain.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		out = append(out, *p)
	}
	s.hooks.Roster(out)
}

// peer returns the negotiation entry for a remote participant, creating
// and wiring a fresh link when none exists: candidates flow back out on
// the channel, negotiation-needed loops into the coordinator, and the
// current local tracks are attached so the link is negotiation-ready.
func (s *Session) peer(id domain.ParticipantID) (*peerEntry, error) {
	return s.registry.getOrCreate(id, func(peer domain.ParticipantID) (core.PeerLink, error) {
		link, err := s.links(peer)
		if err != nil {
			return nil, err
		}
		link.OnICECandidate(func(ci webrtc.ICECandidateInit) {
			s.post(func() {
				_ = s.channel.Send(protocol.ICE(s.selfID, peer, ci))
			})
		})
		link.OnNegotiationNeeded(func() {
			s.post(func() { s.negotiate(peer) })
		})
		link.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			if s.hooks.RemoteTrack != nil {
				s.hooks.RemoteTrack(peer, track)
			}
		})
		if err := link.AttachAudio(s.microphone); err != nil {
			link.Close()
			return nil, err
		}
		if err := link.AttachVideo(s.activeVideo()); err != nil {
			link.Close()
			return nil, err
		}
		return link, nil
	})
}

// activeVideo is the track currently representing this participant's
// video: the screen while sharing, the camera otherwise.
func (s *Session) activeVideo() core.LocalTrack {
	if s.screen != nil {
		return s.screen
	}
	return s.camera
}

func (s *Session) teardown() {
	s.registry.removeAll()
	if s.screen != nil {
		s.screen.Stop()
		s.screen = nil
	}
	if s.camera != nil {
		s.camera.Stop()
	}
	if s.microphone != nil {
		s.microphone.Stop()
	}
	_ = s.channel.Close()
	log.Info().Str("module", "session").Msg("session torn down")
}
