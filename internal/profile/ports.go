package profile

import "context"

type Repository interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	// Ensure creates the profile on first sight and refreshes the email
	// otherwise. The display name is never overwritten.
	Ensure(ctx context.Context, id, email string) (Profile, error)
	UpdateDisplayName(ctx context.Context, id, name string) (Profile, error)
}
