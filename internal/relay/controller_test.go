package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

func newTestRelay(t *testing.T, limiter *JoinLimiter) (*httptest.Server, *Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := NewController(NewHub(), limiter)
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", c.Query("token"))
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, ctl
}

func dialRelay(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads frames until one of the wanted type arrives, failing on
// timeout. Interleaved broadcasts of other types are skipped.
func readType(t *testing.T, conn *websocket.Conn, want protocol.Type) protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("waiting for %s: bad frame: %v", want, err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, room, name string) protocol.Message {
	t.Helper()
	sendMsg(t, conn, protocol.Message{Type: protocol.TypeJoin, RoomID: room, Username: name})
	return readType(t, conn, protocol.TypeJoinAck)
}

func TestJoinAckAndRosterBroadcast(t *testing.T) {
	srv, _ := newTestRelay(t, nil)

	alice := dialRelay(t, srv, "tok-alice")
	ack := joinRoom(t, alice, "math-101", "Alice")
	if ack.SelfID == "" {
		t.Fatal("join ack carries no assigned id")
	}
	if len(ack.Participants) != 1 {
		t.Fatalf("first member sees %d participants, want 1", len(ack.Participants))
	}

	bob := dialRelay(t, srv, "tok-bob")
	ack2 := joinRoom(t, bob, "math-101", "Bob")
	if len(ack2.Participants) != 2 {
		t.Fatalf("second member sees %d participants, want 2", len(ack2.Participants))
	}

	roster := readType(t, alice, protocol.TypeParticipants)
	if len(roster.Participants) != 2 {
		t.Fatalf("roster broadcast has %d participants, want 2", len(roster.Participants))
	}
	names := make(map[string]bool)
	for _, p := range roster.Participants {
		names[p.Name] = true
	}
	if !names["Alice"] || !names["Bob"] {
		t.Errorf("roster names wrong: %v", names)
	}
}

func TestPeerRoutingStampsSender(t *testing.T) {
	srv, _ := newTestRelay(t, nil)

	alice := dialRelay(t, srv, "tok-alice")
	ackA := joinRoom(t, alice, "math-101", "Alice")
	bob := dialRelay(t, srv, "tok-bob")
	ackB := joinRoom(t, bob, "math-101", "Bob")
	readType(t, alice, protocol.TypeParticipants)

	// Spoofed From must be overwritten with the relay-assigned id.
	sendMsg(t, alice, protocol.Message{
		Type: protocol.TypeOffer,
		From: "mallory",
		To:   ackB.SelfID,
		SDP:  "v=0",
	})

	offer := readType(t, bob, protocol.TypeOffer)
	if offer.From != ackA.SelfID {
		t.Errorf("offer From is %q, want the sender's assigned id %q", offer.From, ackA.SelfID)
	}
	if offer.SDP != "v=0" {
		t.Errorf("offer payload altered: %q", offer.SDP)
	}

	// The sender must not see its own peer-scoped message echoed back.
	_ = alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Errorf("unexpected frame echoed to sender: %s", data)
	}
}

func TestRouteToUnknownTargetIsDropped(t *testing.T) {
	srv, _ := newTestRelay(t, nil)
	alice := dialRelay(t, srv, "tok-alice")
	joinRoom(t, alice, "math-101", "Alice")

	sendMsg(t, alice, protocol.Message{Type: protocol.TypeOffer, From: "x", To: "nobody", SDP: "v=0"})

	// The connection survives and keeps working.
	sendMsg(t, alice, protocol.Message{Type: protocol.TypeJoin, RoomID: "math-101", Username: "Alice"})
	readType(t, alice, protocol.TypeJoinAck)
}

func TestDisconnectBroadcastsSingleLeave(t *testing.T) {
	srv, ctl := newTestRelay(t, nil)

	alice := dialRelay(t, srv, "tok-alice")
	joinRoom(t, alice, "math-101", "Alice")
	bob := dialRelay(t, srv, "tok-bob")
	ackB := joinRoom(t, bob, "math-101", "Bob")
	readType(t, alice, protocol.TypeParticipants)

	bob.Close()

	leave := readType(t, alice, protocol.TypeLeave)
	if leave.From != ackB.SelfID {
		t.Errorf("leave From is %q, want %q", leave.From, ackB.SelfID)
	}

	// No second LEAVE for the same departure.
	_ = alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Errorf("unexpected extra frame after leave: %s", data)
	}

	// The survivor keeps the room alive.
	if room, ok := ctl.Hub.Get("math-101"); !ok || room.Size() != 1 {
		t.Error("room should survive with the remaining member")
	}
}

func TestEmptyRoomIsDroppedAfterLastLeave(t *testing.T) {
	srv, ctl := newTestRelay(t, nil)
	alice := dialRelay(t, srv, "tok-alice")
	joinRoom(t, alice, "math-101", "Alice")

	sendMsg(t, alice, protocol.Message{Type: protocol.TypeLeave, From: "x"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := ctl.Hub.Get("math-101"); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("empty room never dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJoinRateLimited(t *testing.T) {
	srv, _ := newTestRelay(t, NewJoinLimiter(1, time.Minute))

	alice := dialRelay(t, srv, "tok-alice")
	joinRoom(t, alice, "math-101", "Alice")

	// Same token, second join inside the window: silently refused.
	sendMsg(t, alice, protocol.Message{Type: protocol.TypeJoin, RoomID: "bio-201", Username: "Alice"})
	_ = alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Errorf("rate-limited join produced a frame: %s", data)
	}
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	srv, _ := newTestRelay(t, nil)
	alice := dialRelay(t, srv, "tok-alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"type":`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	joinRoom(t, alice, "math-101", "Alice")
}

func TestLongDisplayNameIsTruncated(t *testing.T) {
	srv, _ := newTestRelay(t, nil)
	alice := dialRelay(t, srv, "tok-alice")

	long := strings.Repeat("x", domain.MaxDisplayNameLen+20)
	ack := joinRoom(t, alice, "math-101", long)
	if len(ack.Participants) != 1 {
		t.Fatalf("roster has %d entries", len(ack.Participants))
	}
	if got := len(ack.Participants[0].Name); got != domain.MaxDisplayNameLen {
		t.Errorf("stored name length %d, want %d", got, domain.MaxDisplayNameLen)
	}
}
