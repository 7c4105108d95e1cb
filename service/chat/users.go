package chat

import (
	"context"

	"WChat/logger"
	"WChat/model"
	"WChat/service/gateway"
	"WChat/tools/security"
)

func (s *Service) Register(ctx context.Context, username, password string) (model.User, error) {
	u := model.NewUser(username, security.HashPassword(password))
	if err := s.store.CreateUser(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Login resolves credentials to a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, model.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", model.User{}, ErrInvalidCredentials
	}
	if u.Password != security.HashPassword(password) {
		return "", model.User{}, ErrInvalidCredentials
	}
	token, _, err := security.Generate(s.jwt, u.UUID)
	if err != nil {
		return "", model.User{}, err
	}
	return token, *u, nil
}

// UpdateProfile commits the rename, then notifies the user's own live
// session so its self-view refreshes. Other members keep their cached
// snapshot until they refetch.
func (s *Service) UpdateProfile(ctx context.Context, userID, username string) (model.User, error) {
	u, err := s.store.UpdateUsername(ctx, userID, username)
	if err != nil {
		return model.User{}, err
	}

	env, err := gateway.NewEnvelope(gateway.OpUserUpdate, u)
	if err != nil {
		logger.Errorf("[chat] user-update envelope: %v", err)
		return *u, nil
	}
	s.gw.Broadcast(env, gateway.Only(userID))
	return *u, nil
}
