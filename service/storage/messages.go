package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"WChat/model"
)

func (s *Store) CreateMessage(ctx context.Context, m model.Message) error {
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, m); err != nil {
		return errors.Wrap(err, "insert message")
	}
	return nil
}

// ListMessages returns a room's messages, newest first.
func (s *Store) ListMessages(ctx context.Context, roomUUID string) ([]model.Message, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx,
		bson.M{"room.uuid": roomUUID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find messages")
	}
	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode messages")
	}
	return out, nil
}
