package chat

import (
	"context"

	"github.com/pkg/errors"

	"WChat/model"
	"WChat/service/gateway"
	"WChat/tools/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAMember         = errors.New("user is not a member of the room")
	ErrAlreadyAMember     = errors.New("user is already a member of the room")
)

// Store is what the service layer needs from durable storage. Implemented
// by storage.Store; faked in tests.
type Store interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, uuid string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUsername(ctx context.Context, uuid, username string) (*model.User, error)

	CreateRoom(ctx context.Context, r model.Room) error
	GetRoom(ctx context.Context, uuid string) (*model.Room, error)
	AddMember(ctx context.Context, m model.RoomMember) error
	RoomMembers(ctx context.Context, roomUUID string) ([]model.RoomMember, error)
	IsMember(ctx context.Context, roomUUID, userUUID string) (bool, error)
	ListRoomsForUser(ctx context.Context, userUUID string) ([]model.Room, error)

	CreateMessage(ctx context.Context, m model.Message) error
	ListMessages(ctx context.Context, roomUUID string) ([]model.Message, error)
}

// Notifier is the live-delivery side of the mutation-notify contract.
// Implemented by *gateway.Gateway.
type Notifier interface {
	Broadcast(env *gateway.Envelope, pred gateway.Predicate)
}

// Service glues durable writes to live notification: every mutation commits
// first and broadcasts only after the write succeeded. A dropped delivery
// is not an error; the recipient catches up on its next fetch.
type Service struct {
	store Store
	gw    Notifier
	jwt   security.Options
}

func NewService(store Store, gw Notifier, jwt security.Options) *Service {
	return &Service{store: store, gw: gw, jwt: jwt}
}

// ValidateCredential resolves a signed token to its user. This is the
// gateway's Authenticator.
func (s *Service) ValidateCredential(ctx context.Context, token string) (*model.User, error) {
	sub, err := security.Verify(s.jwt, token)
	if err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, sub)
}

// ListRoomsForUser is the gateway's RoomLister.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]model.Room, error) {
	return s.store.ListRoomsForUser(ctx, userID)
}
