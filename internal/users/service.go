package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

var ErrInvalid = errors.New("invalid user")

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Register stores or refreshes a user profile. Email is normalized to lower case.
func (s *Service) Register(ctx context.Context, user User) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FullName = strings.TrimSpace(user.FullName)
	if user.ID == "" || user.Email == "" {
		return User{}, errors.Join(ErrInvalid, errors.New("user id and email are required"))
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return User{}, errors.Join(ErrInvalid, err)
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.Join(ErrInvalid, errors.New("user id is required"))
	}
	return s.Repo.GetByID(ctx, strings.TrimSpace(userID))
}
