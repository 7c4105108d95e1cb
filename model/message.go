package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes user messages from system notices inserted on
// membership changes.
type MessageType string

const (
	MessageDefault   MessageType = "default"
	MessageRoomJoin  MessageType = "room_join"
	MessageRoomLeave MessageType = "room_leave"
)

type Message struct {
	UUID      string      `json:"uuid" bson:"uuid"`
	Author    User        `json:"author" bson:"author"`
	Room      Room        `json:"room" bson:"room"`
	Content   string      `json:"content" bson:"content"`
	Type      MessageType `json:"type" bson:"type"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
}

func NewMessage(author User, room Room, content string) Message {
	return NewMessageWithType(author, room, content, MessageDefault)
}

func NewMessageWithType(author User, room Room, content string, t MessageType) Message {
	return Message{
		UUID:      uuid.NewString(),
		Author:    author,
		Room:      room,
		Content:   content,
		Type:      t,
		CreatedAt: time.Now().UTC(),
	}
}
