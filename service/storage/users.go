package storage

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"WChat/model"
)

var ErrUsernameTaken = errors.New("username already exists")

func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	coll := s.db.Collection(collUsers)

	n, err := coll.CountDocuments(ctx, bson.M{"username": u.Username})
	if err != nil {
		return errors.Wrap(err, "count users by username")
	}
	if n > 0 {
		return ErrUsernameTaken
	}

	if _, err := coll.InsertOne(ctx, u); err != nil {
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uuid string) (*model.User, error) {
	var u model.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"uuid": uuid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by username")
	}
	return &u, nil
}

// UpdateUsername renames a user and refreshes the snapshots embedded in
// membership docs so later reads stay coherent.
func (s *Store) UpdateUsername(ctx context.Context, uuid, username string) (*model.User, error) {
	coll := s.db.Collection(collUsers)

	n, err := coll.CountDocuments(ctx, bson.M{"username": username, "uuid": bson.M{"$ne": uuid}})
	if err != nil {
		return nil, errors.Wrap(err, "count users by username")
	}
	if n > 0 {
		return nil, ErrUsernameTaken
	}

	after := options.After
	var u model.User
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"uuid": uuid},
		bson.M{"$set": bson.M{"username": username}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "update username")
	}

	_, err = s.db.Collection(collMembers).UpdateMany(ctx,
		bson.M{"user.uuid": uuid},
		bson.M{"$set": bson.M{"user.username": username}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "refresh member snapshots")
	}
	return &u, nil
}
