package gateway

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"WChat/model"
)

// newStubSession builds a session with no socket behind it. The forwarding
// task is not started, so frames pile up in outbound where tests can
// inspect them.
func newStubSession(queueSize int) *Session {
	s := &Session{
		ID:       "stub",
		outbound: make(chan frame, queueSize),
		done:     make(chan struct{}),
	}
	s.Touch()
	return s
}

func newAuthedStubSession(userID string, queueSize int) *Session {
	s := newStubSession(queueSize)
	s.setIdentity(&model.User{UUID: userID, Username: "u-" + userID})
	return s
}

// drainTexts empties the session's outbound queue, returning the payloads
// of text frames in order.
func drainTexts(s *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-s.outbound:
			if f.messageType == websocket.TextMessage {
				out = append(out, f.payload)
			}
		default:
			return out
		}
	}
}

type fakeAuth struct {
	mu    sync.Mutex
	users map[string]*model.User // token -> user
}

func (f *fakeAuth) ValidateCredential(_ context.Context, token string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return nil, errors.New("no user found")
	}
	return u, nil
}

type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string][]model.Room // userID -> rooms
	err   error
}

func (f *fakeRooms) ListRoomsForUser(_ context.Context, userID string) ([]model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rooms[userID], nil
}
