package gateway

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"WChat/model"
	"WChat/tools/ids"
)

const writeWait = 5 * time.Second

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// frame is one unit on the outbound queue. The forwarder goroutine is the
// only writer on the socket, so pings and close frames travel the same FIFO
// path as data.
type frame struct {
	messageType int
	payload     []byte
}

// Session is the gateway-side state for one physical connection.
//
// identity is set exactly once, at successful authentication; a session can
// never re-authenticate as somebody else. lastBeat is written by the read
// loop (on pong) and read by the heartbeat monitor, so both go through
// atomics.
type Session struct {
	ID     string
	Remote net.Addr

	conn     *websocket.Conn
	identity atomic.Pointer[model.User]
	lastBeat atomic.Int64 // unix nanos

	outbound chan frame
	done     chan struct{}

	closeOnce    sync.Once
	closeMsg     atomic.Value // []byte, formatted close frame
	hbOnce       sync.Once
	teardownOnce sync.Once
}

func newSession(conn *websocket.Conn, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Session{
		ID:       ids.GenerateString(),
		conn:     conn,
		outbound: make(chan frame, queueSize),
		done:     make(chan struct{}),
	}
	if conn != nil {
		s.Remote = conn.RemoteAddr()
	}
	s.Touch()
	go s.writeLoop()
	return s
}

// Identity returns the authenticated principal, or nil before
// authentication.
func (s *Session) Identity() *model.User {
	return s.identity.Load()
}

// setIdentity binds the principal; returns false if one was already set.
func (s *Session) setIdentity(u *model.User) bool {
	return s.identity.CompareAndSwap(nil, u)
}

// Touch records a liveness signal from the client.
func (s *Session) Touch() {
	s.lastBeat.Store(time.Now().UnixNano())
}

func (s *Session) LastHeartbeat() time.Time {
	return time.Unix(0, s.lastBeat.Load())
}

// EnqueueText queues a serialized envelope for delivery. This is the only
// way code outside the session's own goroutines talks to the socket.
func (s *Session) EnqueueText(payload []byte) error {
	return s.enqueue(frame{messageType: websocket.TextMessage, payload: payload})
}

func (s *Session) EnqueuePing() error {
	return s.enqueue(frame{messageType: websocket.PingMessage})
}

func (s *Session) enqueue(f frame) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- f:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendQueueFull
	}
}

// startHeartbeat runs fn at most once for the session's lifetime.
func (s *Session) startHeartbeat(fn func()) {
	s.hbOnce.Do(fn)
}

// Close tears the session down. Safe to call from any goroutine, any number
// of times; pending outbound frames are flushed before the close frame.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// CloseWith closes with a specific close code and reason. If several paths
// race, the first stored reason wins.
func (s *Session) CloseWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	s.closeMsg.CompareAndSwap(nil, msg)
	s.Close()
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// writeLoop is the forwarding task: it owns all writes on the socket and
// drains the outbound queue until teardown.
func (s *Session) writeLoop() {
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case f := <-s.outbound:
			if !s.writeFrame(f) {
				return
			}
		case <-s.done:
			// flush what was queued before teardown, then say goodbye
			for {
				select {
				case f := <-s.outbound:
					if !s.writeFrame(f) {
						return
					}
				default:
					s.writeClose()
					return
				}
			}
		}
	}
}

func (s *Session) writeFrame(f frame) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(f.messageType, f.payload); err != nil {
		// the socket is gone; make sure enqueues start failing and the
		// read loop unblocks via the deferred conn.Close
		s.Close()
		return false
	}
	return true
}

func (s *Session) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if v := s.closeMsg.Load(); v != nil {
		msg = v.([]byte)
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
}
