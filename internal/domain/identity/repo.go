package identity

import (
	"context"
)

// UserRepository stores login accounts. Create returns ErrEmailTaken when
// the email is already registered; GetByEmail returns an error matching
// scheduling.ErrNotFound when there is no such account.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}
