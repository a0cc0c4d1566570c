package core

import (
	"github.com/pion/webrtc/v4"
)

// PeerLink is the transport-connection handle the negotiation coordinator
// drives: one per remote participant. The production implementation wraps
// a pion PeerConnection; tests substitute a fake with the same signaling
// state semantics.
type PeerLink interface {
	SignalingState() webrtc.SignalingState

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// Rollback abandons the in-flight local offer, returning the link to
	// the stable state. A no-op when nothing is in flight.
	Rollback() error

	AddICECandidate(webrtc.ICECandidateInit) error

	// AttachAudio and AttachVideo add an outgoing track; ReplaceVideo
	// swaps the outgoing video track in place without renegotiating the
	// link from scratch (the transport raises negotiation-needed itself).
	AttachAudio(LocalTrack) error
	AttachVideo(LocalTrack) error
	ReplaceVideo(LocalTrack) error

	// OnNegotiationNeeded sets the callback invoked when the transport
	// wants a fresh offer (new track, restarted ICE). May fire at any
	// time relative to inbound signaling.
	OnNegotiationNeeded(func())
	// OnICECandidate sets the callback for newly gathered local candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets the callback invoked when a remote track arrives.
	OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))

	Close()
}
