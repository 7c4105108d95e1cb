package chat

import (
	"context"
	"time"

	"WChat/logger"
	"WChat/model"
	"WChat/service/gateway"
)

// CreateRoom creates the room, auto-joins the creator with elevated
// permissions, and notifies the creator's live session.
func (s *Service) CreateRoom(ctx context.Context, creatorID, name string) (model.Room, error) {
	creator, err := s.store.GetUser(ctx, creatorID)
	if err != nil {
		return model.Room{}, err
	}

	room := model.NewRoom(name)
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return model.Room{}, err
	}
	member := model.RoomMember{
		User:                   *creator,
		Room:                   room,
		HasElevatedPermissions: true,
		JoinedAt:               time.Now().UTC(),
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return model.Room{}, err
	}

	if env, err := gateway.NewEnvelope(gateway.OpRoomCreate, room); err == nil {
		s.gw.Broadcast(env, gateway.Only(creatorID))
	} else {
		logger.Errorf("[chat] room-create envelope: %v", err)
	}
	return room, nil
}

// JoinRoom adds the user, notifies the joined user's own session, and drops
// a system message into the room, which fans out to the members.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID string, elevated bool) (model.RoomMember, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return model.RoomMember{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.RoomMember{}, err
	}

	// a repeat join would double the membership doc and everything derived
	// from it (room lists, member counts, join notices)
	already, err := s.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return model.RoomMember{}, err
	}
	if already {
		return model.RoomMember{}, ErrAlreadyAMember
	}

	member := model.RoomMember{
		User:                   *user,
		Room:                   *room,
		HasElevatedPermissions: elevated,
		JoinedAt:               time.Now().UTC(),
	}
	if err := s.store.AddMember(ctx, member); err != nil {
		return model.RoomMember{}, err
	}

	if env, err := gateway.NewEnvelope(gateway.OpRoomJoin, room); err == nil {
		s.gw.Broadcast(env, gateway.Only(userID))
	} else {
		logger.Errorf("[chat] room-join envelope: %v", err)
	}

	joinNotice := model.NewMessageWithType(*user, *room, "", model.MessageRoomJoin)
	if err := s.createAndNotify(ctx, joinNotice); err != nil {
		// the membership itself is committed; the notice is best effort
		logger.Warnf("[chat] join notice for room=%s: %v", roomID, err)
	}
	return member, nil
}

// Room fetches a single room by id.
func (s *Service) Room(ctx context.Context, roomID string) (*model.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

func (s *Service) RoomsForUser(ctx context.Context, userID string) ([]model.Room, error) {
	return s.store.ListRoomsForUser(ctx, userID)
}
