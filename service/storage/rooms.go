package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"WChat/model"
)

func (s *Store) CreateRoom(ctx context.Context, r model.Room) error {
	if _, err := s.db.Collection(collRooms).InsertOne(ctx, r); err != nil {
		return errors.Wrap(err, "insert room")
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, uuid string) (*model.Room, error) {
	var r model.Room
	err := s.db.Collection(collRooms).FindOne(ctx, bson.M{"uuid": uuid}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find room")
	}
	return &r, nil
}

var ErrDuplicateMember = errors.New("membership already exists")

// AddMember records a membership. Member docs embed user and room
// snapshots, which keeps member listing and rooms-for-user single queries.
// The unique (room, user) index rejects a concurrent duplicate join.
func (s *Store) AddMember(ctx context.Context, m model.RoomMember) error {
	if _, err := s.db.Collection(collMembers).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateMember
		}
		return errors.Wrap(err, "insert room member")
	}
	return nil
}

func (s *Store) RoomMembers(ctx context.Context, roomUUID string) ([]model.RoomMember, error) {
	cur, err := s.db.Collection(collMembers).Find(ctx, bson.M{"room.uuid": roomUUID})
	if err != nil {
		return nil, errors.Wrap(err, "find room members")
	}
	var out []model.RoomMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode room members")
	}
	return out, nil
}

func (s *Store) IsMember(ctx context.Context, roomUUID, userUUID string) (bool, error) {
	n, err := s.db.Collection(collMembers).CountDocuments(ctx, bson.M{
		"room.uuid": roomUUID,
		"user.uuid": userUUID,
	})
	if err != nil {
		return false, errors.Wrap(err, "count membership")
	}
	return n > 0, nil
}

// ListRoomsForUser returns the rooms a user belongs to, for the
// authenticated ack and the REST room listing.
func (s *Store) ListRoomsForUser(ctx context.Context, userUUID string) ([]model.Room, error) {
	cur, err := s.db.Collection(collMembers).Find(ctx, bson.M{"user.uuid": userUUID})
	if err != nil {
		return nil, errors.Wrap(err, "find memberships")
	}
	var members []model.RoomMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, errors.Wrap(err, "decode memberships")
	}
	rooms := make([]model.Room, 0, len(members))
	for _, m := range members {
		rooms = append(rooms, m.Room)
	}
	return rooms, nil
}
