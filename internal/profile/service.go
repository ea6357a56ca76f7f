package profile

import (
	"context"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// GetOwn returns the caller's profile, creating it from the identity the
// first time the user shows up.
func (s *Service) GetOwn(ctx context.Context, id, email string) (Profile, error) {
	return s.repo.Ensure(ctx, id, email)
}

func (s *Service) UpdateDisplayName(ctx context.Context, id, email string, cmd UpdateCommand) (Profile, error) {
	if _, err := s.repo.Ensure(ctx, id, email); err != nil {
		return Profile{}, err
	}
	return s.repo.UpdateDisplayName(ctx, id, strings.TrimSpace(cmd.DisplayName))
}
