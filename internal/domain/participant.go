// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type ParticipantID string

// MediaFlags is the presence state a participant announces to the room.
// Flags describe intent (camera on, mic on, sharing) for UI labeling;
// they never drive negotiation directly.
type MediaFlags struct {
	Video   bool `json:"video"`
	Audio   bool `json:"audio"`
	Sharing bool `json:"sharing"`
}

// Participant is a member of a room as seen through signaling events.
// ID is assigned by the relay at join time and stable for the session.
type Participant struct {
	ID    ParticipantID `json:"id"`
	Name  string        `json:"username"`
	Media MediaFlags    `json:"media"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, name string) (*Participant, error) {
	if len(name) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{ID: id, Name: name, Media: MediaFlags{Video: true, Audio: true}}, nil
}

func (p *Participant) SetName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	p.Name = name
	return nil
}

// Polite reports whether the participant with id self takes the polite
// role against peer. The lexicographically smaller id is impolite, so
// both sides of any pair derive complementary roles with no coordination.
func Polite(self, peer ParticipantID) bool {
	return self > peer
}
