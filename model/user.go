package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated principal. Password holds the stored hash and
// never leaves the process: it is skipped by both codecs' struct tags below.
type User struct {
	UUID      string    `json:"uuid" bson:"uuid"`
	Username  string    `json:"username" bson:"username"`
	Password  string    `json:"-" bson:"password"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func NewUser(username, passwordHash string) User {
	return User{
		UUID:      uuid.NewString(),
		Username:  username,
		Password:  passwordHash,
		CreatedAt: time.Now().UTC(),
	}
}
