package profile

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("profile not found")

// Profile is keyed by the identity provider's user id.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to the email's local part.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	for i := 0; i < len(p.Email); i++ {
		if p.Email[i] == '@' {
			return p.Email[:i]
		}
	}
	return p.Email
}

type UpdateCommand struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=80"`
}
