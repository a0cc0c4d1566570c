package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/edulab/huddle/internal/core"
	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

// fakeLink emulates the signaling-state machine of a PeerConnection so
// negotiation logic can be driven without any transport.
type fakeLink struct {
	state      webrtc.SignalingState
	localSDP   string
	remoteSDP  string
	candidates []webrtc.ICECandidateInit

	onNeg   func()
	onICE   func(webrtc.ICECandidateInit)
	onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	audio    core.LocalTrack
	video    core.LocalTrack
	replaced []core.LocalTrack

	offerSeq  int
	rollbacks int
	closed    bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{state: webrtc.SignalingStateStable}
}

func (l *fakeLink) SignalingState() webrtc.SignalingState { return l.state }

func (l *fakeLink) CreateOffer() (webrtc.SessionDescription, error) {
	l.offerSeq++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", l.offerSeq)}, nil
}

func (l *fakeLink) CreateAnswer() (webrtc.SessionDescription, error) {
	if l.state != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, errors.New("no remote offer to answer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (l *fakeLink) SetLocalDescription(desc webrtc.SessionDescription) error {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if l.state != webrtc.SignalingStateStable {
			return errors.New("local offer in non-stable state")
		}
		l.state = webrtc.SignalingStateHaveLocalOffer
	case webrtc.SDPTypeAnswer:
		if l.state != webrtc.SignalingStateHaveRemoteOffer {
			return errors.New("local answer without remote offer")
		}
		l.state = webrtc.SignalingStateStable
	case webrtc.SDPTypeRollback:
		l.state = webrtc.SignalingStateStable
	}
	l.localSDP = desc.SDP
	return nil
}

func (l *fakeLink) SetRemoteDescription(desc webrtc.SessionDescription) error {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		if l.state != webrtc.SignalingStateStable {
			return errors.New("remote offer in non-stable state")
		}
		l.state = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		if l.state != webrtc.SignalingStateHaveLocalOffer {
			return errors.New("remote answer without local offer")
		}
		l.state = webrtc.SignalingStateStable
	}
	l.remoteSDP = desc.SDP
	return nil
}

func (l *fakeLink) Rollback() error {
	l.rollbacks++
	l.state = webrtc.SignalingStateStable
	return nil
}

func (l *fakeLink) AddICECandidate(ci webrtc.ICECandidateInit) error {
	l.candidates = append(l.candidates, ci)
	return nil
}

func (l *fakeLink) AttachAudio(t core.LocalTrack) error {
	l.audio = t
	l.fireNeg()
	return nil
}

func (l *fakeLink) AttachVideo(t core.LocalTrack) error {
	l.video = t
	l.fireNeg()
	return nil
}

func (l *fakeLink) ReplaceVideo(t core.LocalTrack) error {
	l.video = t
	l.replaced = append(l.replaced, t)
	l.fireNeg()
	return nil
}

// fireNeg mimics the transport raising negotiation-needed after a track
// change.
func (l *fakeLink) fireNeg() {
	if l.onNeg != nil {
		l.onNeg()
	}
}

func (l *fakeLink) OnNegotiationNeeded(fn func())                   { l.onNeg = fn }
func (l *fakeLink) OnICECandidate(fn func(webrtc.ICECandidateInit)) { l.onICE = fn }
func (l *fakeLink) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	l.onTrack = fn
}
func (l *fakeLink) Close() { l.closed = true }

// fakeChannel records outbound messages and lets tests inject inbound ones.
type fakeChannel struct {
	sent   []protocol.Message
	events chan protocol.Message
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan protocol.Message, 64)}
}

func (c *fakeChannel) Connect(context.Context) error { return nil }
func (c *fakeChannel) Join(roomID, displayName string) error {
	c.sent = append(c.sent, protocol.Message{Type: protocol.TypeJoin, RoomID: roomID, Username: displayName})
	return nil
}
func (c *fakeChannel) Send(msg protocol.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}
func (c *fakeChannel) Events() <-chan protocol.Message { return c.events }
func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func (c *fakeChannel) ofType(t protocol.Type) []protocol.Message {
	var out []protocol.Message
	for _, m := range c.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeTrack is a mutable local capture track.
type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	enabled bool
	stopped bool
	onEnded func()
}

func newFakeTrack(id string, kind webrtc.RTPCodecType) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, enabled: true}
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) SetEnabled(v bool)         { t.enabled = v }
func (t *fakeTrack) Enabled() bool             { return t.enabled }
func (t *fakeTrack) Sender() webrtc.TrackLocal { return nil }
func (t *fakeTrack) OnEnded(fn func())         { t.onEnded = fn }
func (t *fakeTrack) Stop()                     { t.stopped = true }

// interrupt simulates the platform ending the track on its own.
func (t *fakeTrack) interrupt() {
	if t.onEnded != nil && !t.stopped {
		t.onEnded()
	}
}

// fakeSource hands out fake tracks; failScreen makes screen acquisition
// fail the way a denied display-capture prompt would.
type fakeSource struct {
	failScreen bool
	screens    []*fakeTrack
}

func (s *fakeSource) CaptureMicrophone() (core.LocalTrack, error) {
	return newFakeTrack("mic", webrtc.RTPCodecTypeAudio), nil
}

func (s *fakeSource) CaptureCamera() (core.LocalTrack, error) {
	return newFakeTrack("camera", webrtc.RTPCodecTypeVideo), nil
}

func (s *fakeSource) CaptureScreen() (core.LocalTrack, error) {
	if s.failScreen {
		return nil, errors.New("display capture denied")
	}
	t := newFakeTrack("screen", webrtc.RTPCodecTypeVideo)
	s.screens = append(s.screens, t)
	return t, nil
}

// newTestSession builds a session with fakes, already joined as selfID
// with the given roster of remote peers.
func newTestSession(selfID string, peers ...string) (*Session, *fakeChannel, map[string]*fakeLink) {
	channel := newFakeChannel()
	links := make(map[string]*fakeLink)
	factory := func(peer domain.ParticipantID) (core.PeerLink, error) {
		l := newFakeLink()
		links[string(peer)] = l
		return l, nil
	}
	s := New(channel, &fakeSource{}, factory, Hooks{})
	if err := s.Join(context.Background(), "room-1", "tester"); err != nil {
		panic(err)
	}

	roster := []domain.Participant{{ID: domain.ParticipantID(selfID), Name: "tester"}}
	for _, p := range peers {
		roster = append(roster, domain.Participant{ID: domain.ParticipantID(p), Name: p})
	}
	s.handleJoinAck(protocol.Message{Type: protocol.TypeJoinAck, SelfID: selfID, Participants: roster})
	drain(s)
	settle(s, links)
	channel.sent = nil
	return s, channel, links
}

// settle completes any offer round started during setup so every link is
// back in the stable state.
func settle(s *Session, links map[string]*fakeLink) {
	for peer, l := range links {
		if l.state == webrtc.SignalingStateHaveLocalOffer {
			s.handleAnswer(domain.ParticipantID(peer), "answer")
		}
	}
}

// drain runs queued loop commands until none remain, standing in for the
// Run loop in tests.
func drain(s *Session) {
	for {
		select {
		case fn := <-s.commands:
			fn()
		default:
			return
		}
	}
}
