package gateway

import (
	"encoding/json"

	"github.com/pkg/errors"

	"WChat/model"
)

// OpCode tags an envelope. The client may send exactly one op
// (authenticate); everything else is server to client only.
type OpCode string

const (
	// client -> server
	OpAuthenticate OpCode = "authenticate"

	// server -> client
	OpAuthenticated OpCode = "authenticated"
	OpMessageCreate OpCode = "message-create"
	OpRoomCreate    OpCode = "room-create"
	OpRoomJoin      OpCode = "room-join"
	OpUserUpdate    OpCode = "user-update"
	OpAuthError     OpCode = "auth-error"
)

// Envelope is the single message unit exchanged over a connection.
type Envelope struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}
	if env.Op == "" {
		return nil, errors.New("envelope missing op")
	}
	return &env, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return b, nil
}

// NewEnvelope marshals data into an envelope of the given op.
func NewEnvelope(op OpCode, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", op)
	}
	return &Envelope{Op: op, Data: raw}, nil
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type AuthenticatedPayload struct {
	Me    model.User   `json:"me"`
	Rooms []model.Room `json:"rooms"`
}

type AuthErrorPayload struct {
	Message string `json:"message"`
}

// BuildAuthenticatedAck carries the identity and its rooms. A nil room list
// becomes an empty array so the client never sees null.
func BuildAuthenticatedAck(me model.User, rooms []model.Room) *Envelope {
	if rooms == nil {
		rooms = []model.Room{}
	}
	env, _ := NewEnvelope(OpAuthenticated, AuthenticatedPayload{Me: me, Rooms: rooms})
	return env
}

func BuildAuthError(msg string) *Envelope {
	env, _ := NewEnvelope(OpAuthError, AuthErrorPayload{Message: msg})
	return env
}
