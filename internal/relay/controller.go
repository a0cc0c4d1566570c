package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/domain"
	"github.com/edulab/huddle/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket endpoint: it upgrades connections, runs
// the per-client pumps and dispatches inbound messages onto the hub.
type Controller struct {
	Hub     *Hub
	Limiter *JoinLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(hub *Hub, limiter *JoinLimiter) *Controller {
	return &Controller{Hub: hub, Limiter: limiter}
}

// HandleSignal upgrades the request and serves the client until its
// socket dies. Each connection gets a fresh relay-assigned participant
// id; the client token only feeds the join limiter.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}

	id := domain.ParticipantID(uuid.NewString())
	client := newClient(id, ws)
	log.Info().Str("module", "relay").Str("participant", string(id)).Msg("new signaling connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, client)
	go ctl.readPump(ctx, cancel, token, client)
}

func (ctl *Controller) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, token string, c *Client) {
	defer func() {
		ctl.disconnect(c)
		cancel()
		c.Close()
		log.Info().Str("module", "relay").Str("participant", string(c.id)).Msg("readPump closing")
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "relay").Str("participant", string(c.id)).Msg("readPump read error")
				return
			}
			ctl.dispatch(token, c, data)
		}
	}
}

func (ctl *Controller) dispatch(token string, c *Client, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "relay").Str("participant", string(c.id)).Msg("dropping malformed message")
		return
	}
	// The relay stamps the sender; clients cannot spoof From.
	msg.From = string(c.id)

	switch msg.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(token, c, msg)
	case protocol.TypeLeave:
		ctl.handleLeave(c)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICE:
		ctl.route(c, msg)
	case protocol.TypeMediaState:
		ctl.handleMediaState(c, msg)
	case protocol.TypeChat:
		ctl.handleChat(c, msg)
	default:
		log.Debug().Str("module", "relay").Str("type", string(msg.Type)).Msg("ignoring client message type")
	}
}

// handleJoin places the client into a room, acks privately with the
// assigned id plus roster, and announces the new roster to the room.
func (ctl *Controller) handleJoin(token string, c *Client, msg protocol.Message) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(token) {
		log.Warn().Str("module", "relay").Str("participant", string(c.id)).Msg("join rate limited")
		return
	}

	if msg.Username != "" {
		name := msg.Username
		if len(name) > domain.MaxDisplayNameLen {
			name = name[:domain.MaxDisplayNameLen]
		}
		c.setName(name)
	}

	// Rejoins (reconnect with the same socket) move the client over.
	ctl.handleLeave(c)

	room := ctl.Hub.GetOrCreate(domain.RoomID(msg.RoomID))
	room.Add(c)
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()

	ack := protocol.Message{
		Type:         protocol.TypeJoinAck,
		SelfID:       string(c.id),
		Participants: room.Snapshot(),
	}
	ctl.sendTo(c, ack)
	room.Broadcast(c.id, protocol.Message{
		Type:         protocol.TypeParticipants,
		Participants: room.Snapshot(),
	})
	log.Info().Str("module", "relay").Str("participant", string(c.id)).Str("room", msg.RoomID).Msg("join")
}

func (ctl *Controller) handleLeave(c *Client) {
	c.mu.Lock()
	room := c.room
	c.room = nil
	c.mu.Unlock()
	if room == nil {
		return
	}
	room.Remove(c.id)
	room.Broadcast(c.id, protocol.Message{Type: protocol.TypeLeave, From: string(c.id)})
	ctl.Hub.DropIfEmpty(room.ID())
}

// disconnect is the socket-death path; it shares the leave semantics so
// peers always get exactly one LEAVE per departure.
func (ctl *Controller) disconnect(c *Client) {
	ctl.handleLeave(c)
}

// route forwards a peer-scoped message to its addressee within the
// sender's room. Cross-room routing is refused by construction.
func (ctl *Controller) route(c *Client, msg protocol.Message) {
	c.mu.RLock()
	room := c.room
	c.mu.RUnlock()
	if room == nil || msg.To == "" {
		return
	}
	target, ok := room.Get(domain.ParticipantID(msg.To))
	if !ok {
		log.Debug().Str("module", "relay").Str("to", msg.To).Msg("route target not in room")
		return
	}
	ctl.sendTo(target, msg)
}

func (ctl *Controller) handleMediaState(c *Client, msg protocol.Message) {
	if msg.Media == nil {
		return
	}
	c.setMedia(*msg.Media)
	c.mu.RLock()
	room := c.room
	c.mu.RUnlock()
	if room != nil {
		room.Broadcast(c.id, msg)
	}
}

func (ctl *Controller) handleChat(c *Client, msg protocol.Message) {
	c.mu.RLock()
	room := c.room
	c.mu.RUnlock()
	if room == nil {
		return
	}
	if msg.Username == "" {
		msg.Username = c.participant().Name
	}
	room.Broadcast(c.id, msg)
}

func (ctl *Controller) sendTo(c *Client, msg protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("sendTo encode")
		return
	}
	if err := c.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("participant", string(c.id)).Msg("sendTo dropped")
	}
}
