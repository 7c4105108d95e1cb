package gateway

import (
	"time"

	"github.com/gorilla/websocket"

	"WChat/logger"
)

// How often heartbeat pings are sent, and how long a silent client lives.
const (
	DefaultPingInterval  = 5 * time.Second
	DefaultClientTimeout = 10 * time.Second
)

// runHeartbeat supervises one authenticated session. Started exactly once
// per session (guarded by Session.startHeartbeat) and runs until the
// session dies, whichever side notices first.
func (g *Gateway) runHeartbeat(s *Session) {
	if err := s.EnqueuePing(); err != nil {
		g.onDisconnect(s)
		return
	}

	t := time.NewTicker(g.conf.PingInterval)
	defer t.Stop()

	for {
		select {
		case <-s.Done():
			return
		case <-t.C:
			if time.Since(s.LastHeartbeat()) > g.conf.ClientTimeout {
				logger.Warnf("[WS] heartbeat timeout session=%s, disconnecting", s.ID)
				s.CloseWith(websocket.ClosePolicyViolation, "heartbeat timeout")
				g.onDisconnect(s)
				return
			}
			if err := s.EnqueuePing(); err != nil {
				g.onDisconnect(s)
				return
			}
		}
	}
}
