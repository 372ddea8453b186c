package users

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for user accounts.
type Repository interface {
	Insert(ctx context.Context, user User) error
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	EmailsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}
