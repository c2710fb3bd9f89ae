package repository

import (
	"context"

	"stream-resolver/internal/domain"
)

// UserRepository exposes persistence operations for API users.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
