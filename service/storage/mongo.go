package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"WChat/logger"
)

const (
	collUsers    = "users"
	collRooms    = "rooms"
	collMembers  = "room_members"
	collMessages = "messages"
)

var ErrNotFound = errors.New("not found")

// Store is the mongo-backed durable side of the system. It has its own
// consistency boundary; the gateway only ever sees committed entities.
type Store struct {
	db *mongo.Database
}

type Config struct {
	URI      string
	Database string
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}

	logger.Infof("[mongo] connected uri=%s db=%s", cfg.URI, cfg.Database)
	s := &Store{db: cli.Database(cfg.Database)}
	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureIndexes enforces at most one membership doc per (room, user), the
// backstop behind the service-level duplicate-join check.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "room.uuid", Value: 1},
			{Key: "user.uuid", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "ensure room_members index")
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
