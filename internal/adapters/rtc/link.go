// Package rtc wraps pion PeerConnections as core.PeerLink handles.
package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
)

var _ core.PeerLink = (*Link)(nil)

// DefaultConfig returns a configuration with the given STUN servers, or
// Google's public STUN when none are configured.
func DefaultConfig(stun []string) webrtc.Configuration {
	if len(stun) == 0 {
		stun = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stun}},
	}
}

// Link drives one PeerConnection toward a single remote participant.
// Callbacks are registered before any signaling happens so that no
// candidate or track event is lost.
type Link struct {
	pc   *webrtc.PeerConnection
	peer domain.ParticipantID

	onICE   func(webrtc.ICECandidateInit)
	onNeg   func()
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	videoSender *webrtc.RTPSender
}

func NewLink(cfg webrtc.Configuration, peer domain.ParticipantID) (*Link, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	l := &Link{pc: pc, peer: peer}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("peer_connection_state", s.String()).Msg("peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && l.onICE != nil {
			l.onICE(cand.ToJSON())
		}
	})
	pc.OnNegotiationNeeded(func() {
		if l.onNeg != nil {
			l.onNeg()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if l.onTrack != nil {
			l.onTrack(track, receiver)
		}
	})

	return l, nil
}

func (l *Link) SignalingState() webrtc.SignalingState { return l.pc.SignalingState() }

func (l *Link) CreateOffer() (webrtc.SessionDescription, error) {
	return l.pc.CreateOffer(nil)
}

func (l *Link) CreateAnswer() (webrtc.SessionDescription, error) {
	return l.pc.CreateAnswer(nil)
}

func (l *Link) SetLocalDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetLocalDescription(desc)
}

func (l *Link) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(desc)
}

func (l *Link) Rollback() error {
	if l.pc.SignalingState() == webrtc.SignalingStateStable {
		return nil
	}
	return l.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (l *Link) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(ci)
}

func (l *Link) AttachAudio(t core.LocalTrack) error {
	_, err := l.pc.AddTrack(t.Sender())
	return err
}

func (l *Link) AttachVideo(t core.LocalTrack) error {
	sender, err := l.pc.AddTrack(t.Sender())
	if err != nil {
		return err
	}
	l.videoSender = sender
	return nil
}

// ReplaceVideo swaps the outgoing video track on the existing sender.
// pion raises negotiation-needed itself when the swap changes the SDP.
func (l *Link) ReplaceVideo(t core.LocalTrack) error {
	if l.videoSender == nil {
		return l.AttachVideo(t)
	}
	return l.videoSender.ReplaceTrack(t.Sender())
}

func (l *Link) OnNegotiationNeeded(fn func())                   { l.onNeg = fn }
func (l *Link) OnICECandidate(fn func(webrtc.ICECandidateInit)) { l.onICE = fn }
func (l *Link) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	l.onTrack = fn
}

func (l *Link) Close() {
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(l.peer)).Msg("close error")
		return
	}
	log.Info().Str("module", "rtc").Str("peer", string(l.peer)).Msg("closed")
}
