package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	UUID      string    `json:"uuid" bson:"uuid"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func NewRoom(name string) Room {
	return Room{
		UUID:      uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// RoomMember records one user's membership in one room.
type RoomMember struct {
	User                   User      `json:"user" bson:"user"`
	Room                   Room      `json:"room" bson:"room"`
	HasElevatedPermissions bool      `json:"has_elevated_permissions" bson:"has_elevated_permissions"`
	JoinedAt               time.Time `json:"joined_at" bson:"joined_at"`
}
