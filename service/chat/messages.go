package chat

import (
	"context"

	"WChat/logger"
	"WChat/model"
	"WChat/service/gateway"
)

// CreateMessage commits a user message and fans it out to the room's
// members. Non-members cannot post.
func (s *Service) CreateMessage(ctx context.Context, roomID, authorID, content string) (model.Message, error) {
	ok, err := s.store.IsMember(ctx, roomID, authorID)
	if err != nil {
		return model.Message{}, err
	}
	if !ok {
		return model.Message{}, ErrNotAMember
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return model.Message{}, err
	}
	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		return model.Message{}, err
	}

	msg := model.NewMessage(*author, *room, content)
	if err := s.createAndNotify(ctx, msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// createAndNotify is the commit-then-broadcast step shared by user messages
// and system notices. Delivery is scoped to the room's membership; if the
// write fails nothing is broadcast.
func (s *Service) createAndNotify(ctx context.Context, msg model.Message) error {
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return err
	}

	members, err := s.store.RoomMembers(ctx, msg.Room.UUID)
	if err != nil {
		// committed but undeliverable; recipients catch up on fetch
		logger.Errorf("[chat] members for room=%s: %v", msg.Room.UUID, err)
		return nil
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.User.UUID)
	}

	env, err := gateway.NewEnvelope(gateway.OpMessageCreate, msg)
	if err != nil {
		logger.Errorf("[chat] message-create envelope: %v", err)
		return nil
	}
	s.gw.Broadcast(env, gateway.AnyOf(ids))
	return nil
}

// RoomMessages lists a room's history for one of its members.
func (s *Service) RoomMessages(ctx context.Context, roomID, requesterID string) ([]model.Message, error) {
	ok, err := s.store.IsMember(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAMember
	}
	return s.store.ListMessages(ctx, roomID)
}
