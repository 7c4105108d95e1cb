package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"WChat/logger"
	"WChat/model"
)

const (
	maxFrameSize        = 1 << 20 // 1MB
	collaboratorTimeout = 5 * time.Second
)

// Authenticator resolves a credential to an identity. Issued elsewhere;
// the gateway only consumes it.
type Authenticator interface {
	ValidateCredential(ctx context.Context, token string) (*model.User, error)
}

// RoomLister supplies the room list included in the authenticated ack.
type RoomLister interface {
	ListRoomsForUser(ctx context.Context, userID string) ([]model.Room, error)
}

// PresenceHook observes sessions coming up and going down. Optional; the
// gateway works without one.
type PresenceHook interface {
	SessionUp(ctx context.Context, userID, sessionID string)
	SessionDown(ctx context.Context, userID, sessionID string)
}

type Config struct {
	PingInterval  time.Duration
	ClientTimeout time.Duration
	SendQueueSize int
}

func (c *Config) norm() {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = DefaultClientTimeout
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
}

// Gateway owns every live connection: lifecycle, registry membership,
// heartbeat supervision and fan-out.
type Gateway struct {
	conf     Config
	reg      *Registry
	auth     Authenticator
	rooms    RoomLister
	presence PresenceHook

	upgrader websocket.Upgrader
}

func NewGateway(conf Config, auth Authenticator, rooms RoomLister) *Gateway {
	conf.norm()
	return &Gateway{
		conf:  conf,
		reg:   NewRegistry(),
		auth:  auth,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Registry() *Registry { return g.reg }

// SetPresenceHook wires an optional presence mirror; call before serving.
func (g *Gateway) SetPresenceHook(h PresenceHook) { g.presence = h }

// SetAuthenticator wires the credential resolver. The service layer both
// consumes the gateway (broadcast) and supplies this, so it is attached
// after construction; call before serving.
func (g *Gateway) SetAuthenticator(a Authenticator) { g.auth = a }

// HandleWS upgrades the HTTP request and owns the connection end to end.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade failed: %v", err)
		return
	}

	ws.SetReadLimit(maxFrameSize)

	s := newSession(ws, g.conf.SendQueueSize)
	logger.Infof("[WS] connected session=%s remote=%s", s.ID, s.Remote)

	// pong = liveness; ping is answered at transport level by gorilla
	ws.SetPongHandler(func(string) error {
		s.Touch()
		return nil
	})

	g.readLoop(s)
	g.onDisconnect(s)
}

// readLoop relays inbound frames until the connection dies or a frame is
// fatal to it.
func (g *Gateway) readLoop(s *Session) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			g.logReadExit(s, err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if err := g.onInboundFrame(s, data); err != nil {
			logger.Infof("[WS] closing session=%s: %v", s.ID, err)
			return
		}
	}
}

func (g *Gateway) logReadExit(s *Session, err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		logger.Infof("[WS] peer closed session=%s", s.ID)
	default:
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			logger.Infof("[WS] read timeout session=%s err=%v", s.ID, err)
			return
		}
		logger.Infof("[WS] read error session=%s err=%v", s.ID, err)
	}
}

// onInboundFrame dispatches one data frame. The state machine accepts
// exactly one client op, and only before authentication; every other
// (state, op) pair is a protocol violation fatal to the connection.
func (g *Gateway) onInboundFrame(s *Session, raw []byte) error {
	env, err := ParseEnvelope(raw)
	if err != nil {
		s.CloseWith(websocket.CloseInvalidFramePayloadData, "bad payload")
		return err
	}

	if s.Identity() == nil {
		switch env.Op {
		case OpAuthenticate:
			return g.handleAuthenticate(s, env)
		default:
			s.CloseWith(websocket.ClosePolicyViolation, "authentication required")
			return errors.Errorf("op %q before authentication", env.Op)
		}
	}

	switch env.Op {
	case OpAuthenticate:
		s.CloseWith(websocket.ClosePolicyViolation, "already authenticated")
		return errors.New("duplicate authenticate")
	default:
		s.CloseWith(websocket.ClosePolicyViolation, "invalid op")
		return errors.Errorf("unexpected op %q", env.Op)
	}
}

func (g *Gateway) handleAuthenticate(s *Session, env *Envelope) error {
	var p AuthenticatePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Token == "" {
		s.CloseWith(websocket.CloseInvalidFramePayloadData, "bad authenticate payload")
		return errors.New("bad authenticate payload")
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	user, err := g.auth.ValidateCredential(ctx, p.Token)
	if err != nil {
		if b, encErr := BuildAuthError("invalid token provided").Encode(); encErr == nil {
			_ = s.EnqueueText(b)
		}
		s.CloseWith(websocket.ClosePolicyViolation, "authentication failed")
		return errors.Wrap(err, "authenticate")
	}

	s.setIdentity(user)
	g.reg.Insert(user.UUID, s)
	if g.presence != nil {
		g.presence.SessionUp(ctx, user.UUID, s.ID)
	}
	s.startHeartbeat(func() { go g.runHeartbeat(s) })

	// a room-listing failure downgrades the ack, it does not abort the
	// authentication
	rooms, err := g.rooms.ListRoomsForUser(ctx, user.UUID)
	if err != nil {
		logger.Errorf("[WS] list rooms for user=%s failed: %v", user.UUID, err)
		rooms = nil
	}

	b, err := BuildAuthenticatedAck(*user, rooms).Encode()
	if err != nil {
		return err
	}
	if err := s.EnqueueText(b); err != nil {
		logger.Warnf("[WS] drop authenticated ack session=%s: %v", s.ID, err)
	}

	logger.Infof("[WS] authenticated session=%s user=%s rooms=%d", s.ID, user.UUID, len(rooms))
	return nil
}

// onDisconnect releases everything a session holds. Idempotent: the read
// loop and the heartbeat monitor both call it, in any order.
func (g *Gateway) onDisconnect(s *Session) {
	s.teardownOnce.Do(func() {
		if u := s.Identity(); u != nil {
			g.reg.RemoveSession(u.UUID, s)
			if g.presence != nil {
				ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
				defer cancel()
				g.presence.SessionDown(ctx, u.UUID, s.ID)
			}
			logger.Infof("[WS] goodbye user=%s session=%s", u.UUID, s.ID)
		} else {
			logger.Infof("[WS] goodbye session=%s (unauthenticated)", s.ID)
		}
	})
	s.Close()
}
