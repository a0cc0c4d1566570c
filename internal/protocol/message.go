// Package protocol defines the JSON wire format carried by the signaling
// channel. The relay imposes no schema, so decoding is defensive: unknown
// types and missing fields are reported as errors for the caller to ignore,
// never panics.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/edulab/huddle/internal/domain"
)

type Type string

const (
	// Peer-scoped messages, delivered on the private queue.
	TypeJoinAck Type = "JOIN_ACK"
	TypeOffer   Type = "OFFER"
	TypeAnswer  Type = "ANSWER"
	TypeICE     Type = "ICE"

	// Room-scoped messages, delivered on the shared topic.
	TypeJoin         Type = "JOIN"
	TypeParticipants Type = "PARTICIPANTS"
	TypeLeave        Type = "LEAVE"
	TypeMediaState   Type = "MEDIA_STATE"
	TypeChat         Type = "CHAT"
)

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing message field")
)

// Message is the flat signaling envelope. Only the fields relevant to a
// given Type are populated; everything else stays at its zero value and is
// omitted on the wire.
type Message struct {
	Type Type `json:"type"`

	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username,omitempty"`

	// JOIN_ACK / PARTICIPANTS.
	SelfID       string               `json:"selfId,omitempty"`
	Participants []domain.Participant `json:"participants,omitempty"`

	// Peer-scoped routing.
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`

	// OFFER / ANSWER.
	SDP string `json:"sdp,omitempty"`

	// ICE.
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`

	// MEDIA_STATE.
	Media *domain.MediaFlags `json:"media,omitempty"`

	// CHAT.
	Content string `json:"content,omitempty"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a raw frame into a Message and checks that the fields the
// type depends on are present. Callers drop messages that fail to decode.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	switch m.Type {
	case TypeJoin:
		if m.RoomID == "" {
			return Message{}, ErrMissingField
		}
	case TypeJoinAck:
		if m.SelfID == "" {
			return Message{}, ErrMissingField
		}
	case TypeOffer, TypeAnswer:
		if m.From == "" || m.SDP == "" {
			return Message{}, ErrMissingField
		}
	case TypeICE:
		if m.From == "" || m.Candidate == nil {
			return Message{}, ErrMissingField
		}
	case TypeLeave:
		if m.From == "" {
			return Message{}, ErrMissingField
		}
	case TypeMediaState:
		if m.From == "" || m.Media == nil {
			return Message{}, ErrMissingField
		}
	case TypeParticipants, TypeChat:
	default:
		return Message{}, ErrUnknownType
	}
	return m, nil
}

// Offer builds a peer-scoped OFFER addressed to a remote participant.
func Offer(from, to domain.ParticipantID, sdp string) Message {
	return Message{Type: TypeOffer, From: string(from), To: string(to), SDP: sdp}
}

// Answer builds a peer-scoped ANSWER addressed to a remote participant.
func Answer(from, to domain.ParticipantID, sdp string) Message {
	return Message{Type: TypeAnswer, From: string(from), To: string(to), SDP: sdp}
}

// ICE builds a peer-scoped candidate message.
func ICE(from, to domain.ParticipantID, candidate webrtc.ICECandidateInit) Message {
	return Message{Type: TypeICE, From: string(from), To: string(to), Candidate: &candidate}
}

// MediaState builds a room broadcast announcing local presence flags.
func MediaState(from domain.ParticipantID, media domain.MediaFlags) Message {
	return Message{Type: TypeMediaState, From: string(from), Media: &media}
}

// Chat builds a room-scoped chat broadcast.
func Chat(from domain.ParticipantID, username, content string) Message {
	return Message{Type: TypeChat, From: string(from), Username: username, Content: content}
}
