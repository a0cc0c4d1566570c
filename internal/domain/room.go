package domain

type RoomID string

// Room exists server-side only for as long as it has members; the client
// never owns one, it only observes the roster via signaling events.
type Room struct {
	ID RoomID
}
